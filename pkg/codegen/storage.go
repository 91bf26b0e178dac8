package codegen

import (
	"fmt"
	"strings"
)

// StorageKind says where the value of a lowered expression lives.
type StorageKind int

const (
	// StorageNone is the result of a comparison, the value is in the flags.
	StorageNone StorageKind = iota
	StorageImmediate
	StorageStack
	StorageData
	StorageRegister
)

func (k StorageKind) String() string {
	switch k {
	case StorageImmediate:
		return "immediate"
	case StorageStack:
		return "stack"
	case StorageData:
		return "data"
	case StorageRegister:
		return "register"
	}
	return "none"
}

// Storage is a lowered expression. Value is the operand text as it appears
// in an instruction: "5", "word ptr [bp - 2]", "byte ptr ds:[bx]", "ax".
type Storage struct {
	Kind  StorageKind
	Value string
}

var none = Storage{Kind: StorageNone}

func imm(v int) Storage        { return Storage{Kind: StorageImmediate, Value: fmt.Sprint(v)} }
func reg(name string) Storage  { return Storage{Kind: StorageRegister, Value: name} }
func data(ptr string) Storage  { return Storage{Kind: StorageData, Value: ptr} }
func stack(ptr string) Storage { return Storage{Kind: StorageStack, Value: ptr} }

// IsMemory reports whether the operand is a memory reference.
func (s Storage) IsMemory() bool { return s.Kind == StorageStack || s.Kind == StorageData }

func (s Storage) String() string { return s.Value }

// ptrPrefix is the size override for a memory operand of size bytes.
func ptrPrefix(size int) string {
	if size == 1 {
		return "byte ptr "
	}
	return "word ptr "
}

func bpOperand(size, offset int) string {
	switch {
	case offset == 0:
		return ptrPrefix(size) + "[bp]"
	case offset < 0:
		return fmt.Sprintf("%s[bp - %d]", ptrPrefix(size), -offset)
	}
	return fmt.Sprintf("%s[bp + %d]", ptrPrefix(size), offset)
}

func dsOperand(size int, base string, disp int) string {
	switch {
	case disp > 0:
		return fmt.Sprintf("%sds:[%s+%d]", ptrPrefix(size), base, disp)
	case disp < 0:
		return fmt.Sprintf("%sds:[%s-%d]", ptrPrefix(size), base, -disp)
	}
	return fmt.Sprintf("%sds:[%s]", ptrPrefix(size), base)
}

// toByte rewrites a word operand to its low byte.
func toByte(s Storage) Storage {
	switch s.Kind {
	case StorageStack, StorageData:
		return Storage{Kind: s.Kind, Value: "byte ptr " + strings.TrimPrefix(s.Value, "word ptr ")}
	case StorageRegister:
		return reg(lowHalf(s.Value))
	}
	return s
}

// Register halves. Only ax, bx, cx and dx are ever produced.

func lowHalf(r string) string  { return r[:1] + "l" }
func highHalf(r string) string { return r[:1] + "h" }
func fullReg(r string) string  { return r[:1] + "x" }

// width selects the register and instruction names of a 8 or 16 bit operation.
type width struct {
	isByte bool
}

func widthOf(size int) width { return width{isByte: size == 1} }

func (w width) a() string {
	if w.isByte {
		return "al"
	}
	return "ax"
}

func (w width) b() string {
	if w.isByte {
		return "bl"
	}
	return "bx"
}

func (w width) c() string {
	if w.isByte {
		return "cl"
	}
	return "cx"
}

// other returns the scratch register to pair with r.
func (w width) other(r string) string {
	if r == w.a() {
		return w.b()
	}
	return w.a()
}
