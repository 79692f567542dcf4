package target

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// Document formats a source may use.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Source is one signal feed document on disk.
type Source struct {
	Name   string
	Path   string
	Format string
}

// format returns the configured format, falling back to the file extension.
func (s Source) format() string {
	if f := strings.ToLower(strings.TrimSpace(s.Format)); f != "" {
		if f == "yml" {
			return FormatYAML
		}
		return f
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

func (s Source) label() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

// load reads and decodes the document. Every failure wraps
// domain.ErrSourceUnavailable.
func (s Source) load() (any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: file not found", domain.ErrSourceUnavailable, s.label())
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, s.label(), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", domain.ErrSourceUnavailable, s.label())
	}

	var doc any
	switch s.format() {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: decode yaml: %v", domain.ErrSourceUnavailable, s.label(), err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %s: decode json: %v", domain.ErrSourceUnavailable, s.label(), err)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported format %q", domain.ErrSourceUnavailable, s.label(), s.Format)
	}
	return doc, nil
}

func updatedBRT(doc any) string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	switch v := obj["updated_brt"].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}
