package model

import "fmt"

// Mode selects the validator applied to an entry's answer.
type Mode string

const (
	ModeText   Mode = "text"
	ModeNumber Mode = "number"
	ModeDate   Mode = "date"
	ModeOneOf  Mode = "oneof"
	ModeURL    Mode = "url"
	ModeFile   Mode = "file"
)

// Known reports whether m is one of the supported entry modes.
func (m Mode) Known() bool {
	switch m {
	case ModeText, ModeNumber, ModeDate, ModeOneOf, ModeURL, ModeFile:
		return true
	}
	return false
}

// Entry is a single question inside a template.
type Entry struct {
	Mode        Mode   `yaml:"mode"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Incorrect   string `yaml:"incorrect"`
	Skippable   bool   `yaml:"skippable"`
	// Options is the acceptance set for oneof entries. For every other
	// mode it is decoration only: rendered as quick-reply buttons,
	// ignored by validation.
	Options []string `yaml:"options"`
}

// Template is an ordered form definition. Templates are immutable once
// loaded; the catalog is replaced wholesale on config reload.
type Template struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Complete    string  `yaml:"complete"`
	ToEnd       string  `yaml:"toend"`
	Entries     []Entry `yaml:"entries"`
}

// Validate checks the shape of a loaded template: required fields
// present, at least one entry, oneof entries carrying unique non-empty
// options.
func (t Template) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("template: %w: title", ErrMissingField)
	}
	if t.Complete == "" {
		return fmt.Errorf("template %q: %w: complete", t.Title, ErrMissingField)
	}
	if t.ToEnd == "" {
		return fmt.Errorf("template %q: %w: toend", t.Title, ErrMissingField)
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("template %q: %w: entries", t.Title, ErrMissingField)
	}
	for i, e := range t.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("template %q entry %d: %w", t.Title, i, err)
		}
	}
	return nil
}

// Validate checks one entry definition.
func (e Entry) Validate() error {
	if !e.Mode.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, e.Mode)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: title", ErrMissingField)
	}
	if e.Incorrect == "" {
		return fmt.Errorf("%w: incorrect", ErrMissingField)
	}
	if e.Mode == ModeOneOf {
		if len(e.Options) == 0 {
			return fmt.Errorf("%w: options", ErrMissingField)
		}
		seen := make(map[string]struct{}, len(e.Options))
		for _, opt := range e.Options {
			if opt == "" {
				return fmt.Errorf("oneof: %w: empty option", ErrMissingField)
			}
			if _, dup := seen[opt]; dup {
				return fmt.Errorf("oneof: duplicate option %q", opt)
			}
			seen[opt] = struct{}{}
		}
	}
	return nil
}
