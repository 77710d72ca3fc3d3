package log

import (
	"fmt"
	"strings"
)

// OutputConfig selects one output sink.
type OutputConfig struct {
	Type string `json:"type" yaml:"type" toml:"type"` // console|file|null
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
}

// Config is the declarative logger description used by the server and CLI.
type Config struct {
	Level            string         `json:"level" yaml:"level" toml:"level"`
	Format           string         `json:"format" yaml:"format" toml:"format"` // text|json
	Outputs          []OutputConfig `json:"outputs,omitempty" yaml:"outputs,omitempty" toml:"outputs,omitempty"`
	ShowCaller       bool           `json:"showCaller,omitempty" yaml:"showCaller,omitempty" toml:"showCaller,omitempty"`
	Redact           []string       `json:"redact,omitempty" yaml:"redact,omitempty" toml:"redact,omitempty"`
	SampleInitial    int            `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty" toml:"sampleInitial,omitempty"`
	SampleThereafter int            `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty" toml:"sampleThereafter,omitempty"`
}

// ApplyConfig builds a Logger from cfg. A nil cfg yields info/text on stderr.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := []LoggerOption{WithLevel(level)}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opts = append(opts, WithFormatter(&TextFormatter{ShowCaller: cfg.ShowCaller}))
	case "json":
		opts = append(opts, WithFormatter(&JSONFormatter{ShowCaller: cfg.ShowCaller}))
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	for _, oc := range cfg.Outputs {
		switch strings.ToLower(oc.Type) {
		case "", "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case "file":
			if oc.Path == "" {
				return nil, fmt.Errorf("log: file output requires a path")
			}
			fo, err := NewFileOutput(oc.Path)
			if err != nil {
				return nil, fmt.Errorf("log: open %s: %w", oc.Path, err)
			}
			opts = append(opts, WithOutput(fo))
		case "null":
			opts = append(opts, WithOutput(NullOutput{}))
		default:
			return nil, fmt.Errorf("log: unknown output %q", oc.Type)
		}
	}
	if len(cfg.Redact) > 0 {
		opts = append(opts, WithRedactions(cfg.Redact...))
	}
	if cfg.SampleThereafter > 0 {
		opts = append(opts, WithSampling(cfg.SampleInitial, cfg.SampleThereafter))
	}
	return NewLogger(opts...), nil
}
