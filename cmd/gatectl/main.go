// Command gatectl ticks a behaviour tree of conditional gates, configured by
// a dnsmasq-style config file and an optional YAML pause schedule.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeycumines/go-gates/internal/command"
	"github.com/joeycumines/go-gates/internal/config"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		// no home directory, so only -config can name a file
		configPath = ""
	}

	registry := command.NewRegistry()
	helpCmd := command.NewHelpCommand(registry)
	runCmd := command.NewRunCommand(configPath)
	registry.Register(helpCmd)
	registry.Register(runCmd)
	registry.Register(command.NewConfigCommand(configPath))
	registry.Register(command.NewVersionCommand(version))

	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		return helpCmd.Execute(nil, stdout, stderr)
	}

	// bare flags run the tree
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return command.Dispatch(runCmd, args, stdout, stderr)
	}

	cmd, err := registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		_, _ = fmt.Fprintln(stderr, "Use 'gatectl help' to see available commands.")
		return err
	}
	return command.Dispatch(cmd, args[1:], stdout, stderr)
}
