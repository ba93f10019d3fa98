package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/joeycumines/go-gates/internal/config"
)

// ConfigCommand shows, validates and edits the config file.
type ConfigCommand struct {
	*BaseCommand
	configPath string
	section    string
}

// NewConfigCommand returns a config command reading configPath unless the
// -config flag says otherwise.
func NewConfigCommand(configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Show, validate or change configuration settings",
			"config [-config path] [-section name] [options | validate | key [value]]",
		),
		configPath: configPath,
	}
}

func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", c.configPath, "Path to the config file")
	fs.StringVar(&c.section, "section", "", "Section of the option (empty for global options)")
}

func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	schema := config.DefaultSchema()

	if len(args) == 1 && args[0] == "options" {
		_, _ = fmt.Fprint(stdout, schema.FormatHelp())
		return nil
	}

	cfg, err := config.LoadFromPath(c.configPath)
	if err != nil {
		return err
	}

	switch {
	case len(args) == 0:
		c.show(cfg, stdout)
		return nil

	case len(args) == 1 && args[0] == "validate":
		if !cfg.HasWarnings() {
			_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
			return nil
		}
		for _, w := range cfg.Warnings {
			_, _ = fmt.Fprintf(stderr, "warning: %s\n", w)
		}
		return fmt.Errorf("configuration has %d warning(s)", len(cfg.Warnings))

	case len(args) == 1:
		if schema.Lookup(c.section, args[0]) == nil {
			return c.unknown(args[0])
		}
		_, _ = fmt.Fprintf(stdout, "%s\n", schema.Resolve(cfg, c.section, args[0]))
		return nil

	case len(args) == 2:
		if err := config.SetKeyInFile(c.configPath, c.section, args[0], args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Set %s to %s in %s\n", c.qualified(args[0]), args[1], c.configPath)
		return nil

	default:
		_, _ = fmt.Fprintf(stderr, "Usage: gatectl %s\n", c.Usage())
		return errors.New("too many arguments")
	}
}

func (c *ConfigCommand) show(cfg *config.Config, w io.Writer) {
	_, _ = fmt.Fprintf(w, "Config file: %s\n", c.configPath)
	_, _ = fmt.Fprintln(w, "Global configuration:")
	for _, key := range sortedKeys(cfg.Global) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", key, cfg.Global[key])
	}
	for _, section := range sortedKeys(cfg.Sections) {
		_, _ = fmt.Fprintf(w, "[%s]\n", section)
		for _, key := range sortedKeys(cfg.Sections[section]) {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", key, cfg.Sections[section][key])
		}
	}
}

func (c *ConfigCommand) qualified(key string) string {
	if c.section == "" {
		return key
	}
	return "[" + c.section + "] " + key
}

func (c *ConfigCommand) unknown(key string) error {
	if c.section == "" {
		return fmt.Errorf("unknown global option: %q", key)
	}
	return fmt.Errorf("unknown option in [%s]: %q", c.section, key)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
