package prql

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// optionsFile mirrors Options' YAML-visible fields. Display isn't
// serializable (it configures terminal rendering, not compilation) so it's
// left at its zero value on a loaded Options.
type optionsFile struct {
	Format           *bool  `yaml:"format"`
	Target           string `yaml:"target"`
	SignatureComment *bool  `yaml:"signature_comment"`
}

// LoadOptions reads a YAML document (e.g. a project's prqlc.yaml) and
// overlays it onto DefaultOptions. Fields absent from the document keep
// their default.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading %q: %w", path, err)
	}
	return ParseOptions(data)
}

// ParseOptions is LoadOptions minus the file read, for callers that already
// have the YAML bytes (embedded config, a fetched remote document, ...).
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	var f optionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Options{}, fmt.Errorf("yaml.Unmarshal: %w", err)
	}
	if f.Format != nil {
		opts.Format = *f.Format
	}
	if f.Target != "" {
		opts.Target = f.Target
	}
	if f.SignatureComment != nil {
		opts.SignatureComment = *f.SignatureComment
	}
	return opts, nil
}
