package config

import (
	"strings"

	"github.com/xplshn/cbc/pkg/cli"
)

type Feature int

const (
	FeatAsm Feature = iota
	FeatArrays
	FeatAsmComments
	FeatShlScaling
	FeatCleanupOnBreak
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnUnusedFunction
	WarnTruncation
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	IncludeDirs []string
	Defines     map[string]string
	Output      string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Defines:    make(map[string]string),
	}

	features := map[Feature]Info{
		FeatAsm:            {"asm", true, "Allow `__asm { ... }` blocks for inline assembly."},
		FeatArrays:         {"arrays", true, "Allow fixed-size stack arrays `type name[N];`."},
		FeatAsmComments:    {"asm-comments", true, "Echo each source statement as a comment in the output."},
		FeatShlScaling:     {"shl-scaling", false, "Scale pointer arithmetic with `shl` when the element size is a power of two."},
		FeatCleanupOnBreak: {"cleanup-on-break", true, "Pop loop-body locals before `break` and `continue` jump."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements after a `return` in the same block."},
		WarnUnusedFunction:  {"unused-function", false, "Warn about functions that are never called from `main`."},
		WarnTruncation:      {"truncation", true, "Warn when an explicit cast changes the value of a constant."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings, such as unknown pragma flags."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// WarningFlag is the command-line spelling of a warning, as shown after
// warning messages.
func (c *Config) WarningFlag(wt Warning) string { return "-W" + c.Warnings[wt].Name }

// applyFlag handles -W<name>, -Wno-<name>, -F<name> and -Fno-<name>. It
// reports whether the flag named a known warning or feature.
func (c *Config) applyFlag(flag string) bool {
	trimmed := strings.TrimPrefix(flag, "-")
	if len(trimmed) < 2 {
		return false
	}
	kind, name := trimmed[0], trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	switch kind {
	case 'W':
		if name == "all" {
			for i := Warning(0); i < WarnCount; i++ {
				c.SetWarning(i, enable)
			}
			return true
		}
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return true
		}
	case 'F':
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
			return true
		}
	}
	return false
}

// ProcessDirectiveFlags applies the flags of a `#pragma cbc` line and
// returns the ones it did not recognize.
func (c *Config) ProcessDirectiveFlags(flagStr string) []string {
	var unknown []string
	for _, flag := range strings.Fields(flagStr) {
		if !c.applyFlag(flag) {
			unknown = append(unknown, flag)
		}
	}
	return unknown
}

// SetupFlagGroups registers the -W and -F flag groups on fs. The returned
// entries are indexed by Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed group entries into the tables.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// Define records a predefined macro. An empty value defines it as 1.
func (c *Config) Define(def string) {
	name, value, ok := strings.Cut(def, "=")
	if !ok || value == "" {
		value = "1"
	}
	c.Defines[strings.TrimSpace(name)] = value
}
