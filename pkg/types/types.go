// Package types implements the Cb type values: a primitive name plus a
// pointer depth, with the size and cast rules of the 16-bit target.
package types

import (
	"strings"
)

// Type is a primitive name and a pointer depth. Values are comparable with ==.
type Type struct {
	Name  string
	Depth int
}

var (
	Int   = Type{Name: "int"}
	Byte  = Type{Name: "byte"}
	Void  = Type{Name: "void"}
	Flags = Type{Name: "flags"}

	VoidPtr = Type{Name: "void", Depth: 1}
)

// Builtins are the types every environment starts with.
var Builtins = []Type{Int, Byte, Void}

func New(name string, depth int) Type {
	return Type{Name: strings.ToLower(name), Depth: depth}
}

func (t Type) String() string {
	return t.Name + strings.Repeat("*", t.Depth)
}

func (t Type) IsPointer() bool { return t.Depth > 0 }

// IsArithmetic reports whether the type supports builtin arithmetic.
func (t Type) IsArithmetic() bool {
	return t.Depth == 0 && (t.Name == Int.Name || t.Name == Byte.Name)
}

// Size returns the storage size in bytes.
func (t Type) Size() int {
	switch {
	case t.Depth > 0:
		return 2
	case t.Name == Byte.Name:
		return 1
	default:
		return 2
	}
}

// PaddedSize rounds Size up to the 2 byte stack slot.
func (t Type) PaddedSize() int {
	s := t.Size()
	return s + s%2
}

// Bits is the width of the value in bits.
func (t Type) Bits() int { return t.Size() * 8 }

// Mask truncates v to the width of t.
func (t Type) Mask(v int) int {
	return v & (1<<t.Bits() - 1)
}

// Deref returns the pointee type. The caller must check IsPointer first.
func (t Type) Deref() Type {
	return Type{Name: t.Name, Depth: t.Depth - 1}
}

// Ref returns a pointer to t.
func (t Type) Ref() Type {
	return Type{Name: t.Name, Depth: t.Depth + 1}
}

// CanCast reports whether an explicit cast from t to to is legal.
func (t Type) CanCast(to Type) bool {
	switch {
	case t == to:
		return true
	case t.IsPointer() && to.IsPointer():
		return true
	case t.IsPointer() && to.Size() == 2 && to != Flags && to != Void:
		return true
	case to.IsPointer() && t.Size() == 2 && t != Flags && t != Void:
		return true
	case t.IsArithmetic() && to.IsArithmetic():
		return true
	}
	return false
}

// CanImplicitlyCast reports whether t converts to to without a cast.
func (t Type) CanImplicitlyCast(to Type) bool {
	if !t.CanCast(to) {
		return false
	}
	switch {
	case t == to:
		return true
	case t.IsPointer() && to.IsPointer():
		return t.isVoidPointer() || to.isVoidPointer()
	case t == Byte && to == Int:
		return true
	}
	return false
}

func (t Type) isVoidPointer() bool { return t.Name == Void.Name && t.Depth == 1 }

// Promote returns the common arithmetic type of a and b.
func Promote(a, b Type) Type {
	if a == Int || b == Int {
		return Int
	}
	return Byte
}
