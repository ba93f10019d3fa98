package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// record is one entry of a schedule file:
//
//	- start: "22:00:00"
//	  stop: "06:00:00"
//	  jitter: "00:15:00"
//
// The older start_pause_time, stop_pause_time and variance keys are accepted
// as aliases.
type record struct {
	Start  string `yaml:"start"`
	Stop   string `yaml:"stop"`
	Jitter string `yaml:"jitter"`

	StartPauseTime string `yaml:"start_pause_time"`
	StopPauseTime  string `yaml:"stop_pause_time"`
	Variance       string `yaml:"variance"`
}

// Load reads schedule entries from a YAML file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schedule file %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes schedule entries from YAML. Unknown keys are rejected. An
// empty document is an empty schedule.
func Parse(data []byte) ([]Entry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var records []record
	if err := dec.Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	entries := make([]Entry, 0, len(records))
	for i, r := range records {
		e, err := r.entry()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r record) entry() (Entry, error) {
	start, err := ParseTimeOfDay(firstOf(r.Start, r.StartPauseTime))
	if err != nil {
		return Entry{}, fmt.Errorf("start: %w", err)
	}
	stop, err := ParseTimeOfDay(firstOf(r.Stop, r.StopPauseTime))
	if err != nil {
		return Entry{}, fmt.Errorf("stop: %w", err)
	}
	jitter, err := ParseJitter(firstOf(r.Jitter, r.Variance))
	if err != nil {
		return Entry{}, fmt.Errorf("jitter: %w", err)
	}
	return NewEntry(start, stop, jitter)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
