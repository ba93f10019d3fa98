package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeycumines/go-gates/internal/storage"
)

// SetKeyInFile updates or adds an option in the config file, preserving
// comments and formatting. An empty section means a global option.
//
// If the key exists in the target section its line is replaced in place.
// Otherwise a global key is inserted before the first section header, and a
// section key is appended to the end of its section, creating the section at
// the end of the file if needed. The file is replaced atomically.
func SetKeyInFile(path, section, key, value string) error {
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return fmt.Errorf("invalid option name %q", key)
	}
	if section != "" && DefaultSchema().Lookup(section, key) == nil {
		return fmt.Errorf("unknown option in [%s]: %q", section, key)
	}
	if section == "" && DefaultSchema().Lookup("", key) == nil {
		return fmt.Errorf("unknown global option: %q", key)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	current := ""
	sectionSeen := section == ""
	insertIndex := -1
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if current == section && insertIndex < 0 {
				insertIndex = i
			}
			current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
			if current == section {
				sectionSeen = true
			}
			continue
		}
		if current != section || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			replaced = true
			break
		}
	}

	switch {
	case replaced:
	case !sectionSeen:
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	case insertIndex < 0:
		lines = append(lines, newLine)
	default:
		lines = append(lines[:insertIndex+1], lines[insertIndex:]...)
		lines[insertIndex] = newLine
	}

	return storage.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
