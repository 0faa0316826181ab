package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func (c *commandContext) validateOutput() error {
	switch c.output() {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want text, json or yaml)", *c.outputFlag)
	}
}

func (c *commandContext) output() string {
	if c.outputFlag == nil {
		return outputText
	}
	value := strings.ToLower(strings.TrimSpace(*c.outputFlag))
	if value == "" {
		return outputText
	}
	return value
}

// writeStructured encodes v when a structured output format was requested.
// It reports false for text output so the caller renders its own view.
func (c *commandContext) writeStructured(cmd *cobra.Command, v any) (bool, error) {
	switch c.output() {
	case outputJSON:
		return true, writeJSON(cmd, v)
	case outputYAML:
		return true, writeYAML(cmd, v)
	default:
		return false, nil
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// formatTime renders t with the configured strftime pattern.
func formatTime(pattern string, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	f, err := strftime.New(pattern)
	if err != nil {
		return t.Local().Format(time.RFC3339)
	}
	return f.FormatString(t.Local())
}

func formatMillis(pattern string, ms int64) string {
	if ms <= 0 {
		return "never"
	}
	return formatTime(pattern, time.UnixMilli(ms))
}

// formatClock renders seconds as H:MM:SS or M:SS.
func formatClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
