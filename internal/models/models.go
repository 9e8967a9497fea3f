// Package models is the catalogue of chat models offered to the client.
package models

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var catalogueYAML []byte

type Model struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Provider    string `yaml:"provider" json:"provider"`
	Description string `yaml:"description" json:"description"`
}

type Catalogue struct {
	Default string  `yaml:"default" json:"default"`
	Models  []Model `yaml:"models" json:"models"`
}

// Parse reads a catalogue and checks that the default model is listed.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse model catalogue: %w", err)
	}
	if len(c.Models) == 0 {
		return nil, errors.New("model catalogue is empty")
	}
	seen := map[string]bool{}
	for _, m := range c.Models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("model catalogue entry %q needs an id and a provider", m.Name)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate model %q", m.ID)
		}
		seen[m.ID] = true
	}
	if c.Default == "" {
		c.Default = c.Models[0].ID
	}
	if !seen[c.Default] {
		return nil, fmt.Errorf("default model %q is not in the catalogue", c.Default)
	}
	return &c, nil
}

// Default returns the embedded catalogue.
func Default() *Catalogue {
	c, err := Parse(catalogueYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalogue) Lookup(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ProviderFor returns the provider serving id, falling back to the default
// model's provider for ids outside the catalogue.
func (c *Catalogue) ProviderFor(id string) string {
	if m, ok := c.Lookup(id); ok {
		return m.Provider
	}
	m, _ := c.Lookup(c.Default)
	return m.Provider
}

// Resolve returns id when it is in the catalogue and the default otherwise.
func (c *Catalogue) Resolve(id string) string {
	if _, ok := c.Lookup(id); ok {
		return id
	}
	return c.Default
}

// ByProvider groups models by provider, keeping catalogue order.
func (c *Catalogue) ByProvider() map[string][]Model {
	out := map[string][]Model{}
	for _, m := range c.Models {
		out[m.Provider] = append(out[m.Provider], m)
	}
	return out
}

// IsReasoning reports whether id names a reasoning variant. Reasoning
// variants do not get tools.
func IsReasoning(id string) bool {
	return strings.Contains(id, "reasoning") || strings.HasSuffix(id, "-thinking")
}
