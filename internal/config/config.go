package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCommand is returned when no target command was given.
var ErrNoCommand = errors.New("no command specified")

// CustomAttribute is a NAME=EXPR pair evaluated against each process.
type CustomAttribute struct {
	Name       string
	Expression string
}

// Config holds the parsed command-line configuration
type Config struct {
	// Command is the executable to run
	Command string
	// Args are the arguments to pass to the command
	Args []string
	// CustomAttributes are evaluated for every process after each exec
	CustomAttributes []CustomAttribute

	// ShowThreads lists CLONE_THREAD children in the live display
	ShowThreads bool
	// NoDisplay disables the live display; only the final summary is printed
	NoDisplay bool
	// ExportOTEL sends the final profile as OTLP spans
	ExportOTEL bool
	// Verbose enables debug logging
	Verbose bool

	Settings *Settings
}

// New builds a Config from the positional command line and the raw -a flag
// values. Attributes from WTF_ATTRIBUTES come first, CLI attributes after.
func New(command []string, rawAttrs []string, settings *Settings) (*Config, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, ErrNoCommand
	}
	if settings == nil {
		settings = DefaultSettings()
	}

	attrs, err := ParseAttributeString(settings.Attributes)
	if err != nil {
		return nil, fmt.Errorf("WTF_ATTRIBUTES: %w", err)
	}
	for _, raw := range rawAttrs {
		attr, err := ParseAttribute(raw)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}

	return &Config{
		Command:          command[0],
		Args:             command[1:],
		CustomAttributes: attrs,
		Settings:         settings,
	}, nil
}

// ParseAttribute parses a single NAME=EXPR definition. Only the first '='
// separates name from expression.
func ParseAttribute(raw string) (CustomAttribute, error) {
	name, expr, ok := strings.Cut(raw, "=")
	if !ok {
		return CustomAttribute{}, fmt.Errorf("invalid attribute format %q: expected NAME=EXPR", raw)
	}
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if name == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: name cannot be empty", raw)
	}
	if expr == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: expression cannot be empty", raw)
	}
	return CustomAttribute{Name: name, Expression: expr}, nil
}

// ParseAttributeString parses semicolon-separated NAME=EXPR definitions.
// Empty sections are skipped.
func ParseAttributeString(s string) ([]CustomAttribute, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var attrs []CustomAttribute
	for _, section := range strings.Split(s, ";") {
		if strings.TrimSpace(section) == "" {
			continue
		}
		attr, err := ParseAttribute(section)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}
