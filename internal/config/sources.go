package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
)

//go:embed sources.yaml
var defaultRegistry []byte

// Registry is the parsed source registry.
type Registry struct {
	Keywords []string        `yaml:"keywords"`
	Sources  []domain.Source `yaml:"sources"`
}

// Enabled returns the sources that should be polled, in registry order.
func (r *Registry) Enabled() []domain.Source {
	return lo.Filter(r.Sources, func(s domain.Source, _ int) bool { return s.Enabled })
}

// LoadRegistry reads the registry at path, or the embedded default when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return ParseRegistry(defaultRegistry)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SOURCES_FILE: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates a YAML registry.
func ParseRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode source registry: %w", err)
	}

	r.Keywords = lo.Uniq(lo.FilterMap(r.Keywords, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	}))

	if len(r.Sources) == 0 {
		return nil, errors.New("source registry has no sources")
	}

	seen := make(map[string]struct{}, len(r.Sources))
	for i, s := range r.Sources {
		if s.ID == "" {
			return nil, fmt.Errorf("source %d: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("source %s: duplicate id", s.ID)
		}
		seen[s.ID] = struct{}{}

		if s.Type != domain.SourceRSS && s.Type != domain.SourceHTML {
			return nil, fmt.Errorf("source %s: unknown type %q", s.ID, s.Type)
		}
		if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("source %s: invalid url %q", s.ID, s.URL)
		}
		if s.Name == "" {
			r.Sources[i].Name = s.ID
		}
		if s.FilterRequired && len(r.Keywords) == 0 {
			return nil, fmt.Errorf("source %s: filter_required needs a keyword list", s.ID)
		}
		if err := validateSelectors(s); err != nil {
			return nil, err
		}
	}

	return &r, nil
}

func validateSelectors(s domain.Source) error {
	if len(s.Selectors) == 0 {
		return nil
	}
	if s.Type != domain.SourceHTML {
		return fmt.Errorf("source %s: selectors apply only to html sources", s.ID)
	}
	for _, sel := range s.Selectors {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("source %s: empty selector", s.ID)
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("source %s: invalid selector %q: %w", s.ID, sel, err)
		}
	}
	return nil
}
