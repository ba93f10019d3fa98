// Package command implements the gatectl subcommands.
package command

import (
	"flag"
	"io"
)

// Command is a gatectl subcommand.
type Command interface {
	Name() string
	Description() string
	Usage() string

	// SetupFlags registers the command's flags on fs before parsing.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command. args are the arguments left after flag
	// parsing.
	Execute(args []string, stdout, stderr io.Writer) error
}

// BaseCommand carries the descriptive fields every command shares, and
// defines no flags.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{name: name, description: description, usage: usage}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

func (c *BaseCommand) SetupFlags(*flag.FlagSet) {}
