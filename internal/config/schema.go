package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeFloat is a floating point value.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
	// TypeIntList is a comma-separated list of integers.
	TypeIntList OptionType = "int-list"
	// TypeFloatList is a comma-separated list of floats.
	TypeFloatList OptionType = "float-list"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a section name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. The last registration of a key
// within a section wins.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for a key in a given section ("" for
// global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// Sections returns the sorted names of all sections with registered options.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// SectionOptions returns all registered options for section ("" for global),
// in registration order.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Resolve returns the effective value of an option by checking, in order,
// the option's environment variable, the section's value, the global value
// (for section options), and the schema default.
func (s *ConfigSchema) Resolve(c *Config, section, key string) string {
	opt := s.Lookup(section, key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if section == "" {
		if v, ok := c.GetGlobalOption(key); ok {
			return v
		}
	} else if v, ok := c.GetSectionOption(section, key); ok {
		return v
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a
// sorted list of human-readable issues: unknown options, unknown sections,
// and values that do not parse as the declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Sections {
		if _, ok := s.bySection[section]; !ok {
			issues = append(issues, fmt.Sprintf("unknown section: [%s]", section))
			continue
		}
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	var err error
	switch t {
	case TypeString, "":
	case TypeBool:
		_, err = parseBool(value)
	case TypeInt:
		_, err = strconv.Atoi(value)
	case TypeFloat:
		_, err = strconv.ParseFloat(value, 64)
	case TypeDuration:
		_, err = time.ParseDuration(value)
	case TypeIntList:
		_, err = parseIntList(value)
	case TypeFloatList:
		_, err = parseFloatList(value)
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	if err != nil {
		return fmt.Errorf("expected %s, got %q", t, value)
	}
	return nil
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, field := range splitList(s) {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, field := range splitList(s) {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// FormatHelp returns a human-readable reference of all registered options,
// grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.SectionOptions(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.SectionOptions(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-20s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns the schema of every gatectl option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "tick-interval", Type: TypeDuration, Default: "100ms", Description: "Time between root ticks"},
		{Key: "max-ticks", Type: TypeInt, Default: "0", Description: "Stop after this many ticks, 0 for no limit"},
		{Key: "seed", Type: TypeInt, Default: "", Description: "Seed for every random source, random if unset", EnvVar: "GATECTL_SEED"},
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "GATECTL_LOG_LEVEL"},
		{Key: "metrics.addr", Type: TypeString, Default: "", Description: "Listen address for /metrics, disabled if empty"},
		{Key: "schedule.file", Type: TypeString, Default: "", Description: "YAML pause schedule, disabled if empty"},
		{Key: "schedule.watch", Type: TypeBool, Default: "false", Description: "Reload the schedule file when it changes"},
		{Key: "schedule.mode", Type: TypeString, Default: "wait", Description: "wait: hold the tree for the rest of a window; check: count window entries without waiting"},
		{Key: "state.file", Type: TypeString, Default: "", Description: "JSON file the blackboard is restored from and saved to, disabled if empty"},

		{Section: "alternating", Key: "counts", Type: TypeIntList, Default: "3,2,1", Description: "Consecutive ticks given to each branch"},

		{Section: "every-x", Key: "min", Type: TypeInt, Default: "2", Description: "Lower bound of the tick interval"},
		{Section: "every-x", Key: "max", Type: TypeInt, Default: "4", Description: "Upper bound of the tick interval"},
		{Section: "every-x", Key: "duration", Type: TypeInt, Default: "2", Description: "Ticks the guarded task stays running"},
		{Section: "every-x", Key: "pause-min", Type: TypeDuration, Default: "0s", Description: "Lower bound of a random wall-clock pause used as the task instead"},
		{Section: "every-x", Key: "pause-max", Type: TypeDuration, Default: "0s", Description: "Upper bound of that pause, disabled if zero"},

		{Section: "every-range", Key: "max-range", Type: TypeInt, Default: "10", Description: "Cycle length in ticks"},
		{Section: "every-range", Key: "window-start", Type: TypeInt, Default: "3", Description: "First allowed tick of the cycle"},
		{Section: "every-range", Key: "window-end", Type: TypeInt, Default: "5", Description: "Last allowed tick of the cycle"},
		{Section: "every-range", Key: "duration", Type: TypeInt, Default: "1", Description: "Ticks the guarded task stays running"},

		{Section: "weighted", Key: "probabilities", Type: TypeFloatList, Default: "0.2,0.3,0.5", Description: "Selection probability of each weighted task"},
		{Section: "weighted", Key: "success-probability", Type: TypeFloat, Default: "1", Description: "Probability that a selected task succeeds and is tallied"},
		{Section: "weighted", Key: "condition", Type: TypeString, Default: "", Description: "Expression over the blackboard that must hold for the weighted branch to run, always runs if empty"},

		{Section: "probabilistic", Key: "probability", Type: TypeFloat, Default: "0.5", Description: "Probability that the gated task runs"},
		{Section: "probabilistic", Key: "skip-result", Type: TypeString, Default: "failure", Description: "Result when skipped: success or failure"},
	})
	return s
}
