// Package catalog holds the static model registry: every model the gateway
// can route, its owning vendor, capability metadata, and price data. The
// registry is loaded once from embedded YAML and immutable afterwards.
//
// Lookup accepts canonical ids, declared aliases, and intensity-suffixed
// variants: "o3-high" resolves to "o3" by stripping known suffixes
// right-to-left until an entry matches.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/leofalp/aigate/core/cost"
)

//go:embed models.yaml
var modelsYAML []byte

// intensitySuffixes are stripped recursively during alias resolution, so
// "claude-sonnet-4-high" and "o3-low" reach their base entries without each
// variant needing its own alias line.
var intensitySuffixes = []string{"-low", "-medium", "-high", "-max"}

// ErrModelNotFound is returned when no entry matches an id, alias, or any
// suffix-stripped form of it.
var ErrModelNotFound = fmt.Errorf("model not found in catalog")

// Features describes what a model can do. Metadata only; provider APIs remain
// the source of truth and reject what they do not support.
type Features struct {
	ContextWindow   int  `yaml:"context_window"`
	MaxOutputTokens int  `yaml:"max_output_tokens"`
	Streaming       bool `yaml:"streaming"`
	Tools           bool `yaml:"tools"`
	Vision          bool `yaml:"vision"`
	Reasoning       bool `yaml:"reasoning"`
	ImageOutput     bool `yaml:"image_output"`
}

// ModelEntry is one catalog record.
type ModelEntry struct {
	// ID is the canonical identifier used in cost updates and routing.
	ID string `yaml:"id"`

	// Aliases are alternate names resolving to this entry.
	Aliases []string `yaml:"aliases"`

	// Vendor names the provider adapter that serves this model.
	Vendor string `yaml:"vendor"`

	// Class is the coarse capability class (frontier, fast, reasoning,
	// image, simulated).
	Class string `yaml:"class"`

	Features Features     `yaml:"features"`
	Pricing  cost.Pricing `yaml:"pricing"`
}

// catalogFile is the embedded YAML document layout.
type catalogFile struct {
	Version     string        `yaml:"version"`
	LastUpdated string        `yaml:"last_updated"`
	Models      []*ModelEntry `yaml:"models"`
}

// Catalog is an immutable model registry.
type Catalog struct {
	version string
	entries []*ModelEntry
	byName  map[string]*ModelEntry
}

// Load parses a YAML catalog document. Duplicate ids or aliases are an error:
// the registry must resolve every name to exactly one entry.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model catalog: %w", err)
	}

	c := &Catalog{
		version: file.Version,
		entries: file.Models,
		byName:  make(map[string]*ModelEntry, len(file.Models)*2),
	}

	for _, entry := range file.Models {
		if entry.ID == "" {
			return nil, fmt.Errorf("catalog entry without id (vendor %q)", entry.Vendor)
		}
		if err := c.register(entry.ID, entry); err != nil {
			return nil, err
		}
		for _, alias := range entry.Aliases {
			if err := c.register(alias, entry); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

func (c *Catalog) register(name string, entry *ModelEntry) error {
	if existing, ok := c.byName[name]; ok {
		return fmt.Errorf("catalog name %q claimed by both %q and %q", name, existing.ID, entry.ID)
	}
	c.byName[name] = entry
	return nil
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// Default returns the catalog loaded from the embedded models.yaml. The
// embedded document is part of the build, so a parse failure is a programming
// error and panics rather than returning a half-usable registry.
func Default() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = Load(modelsYAML)
	})
	if defaultCatalogErr != nil {
		panic(fmt.Sprintf("embedded model catalog is invalid: %v", defaultCatalogErr))
	}
	return defaultCatalog
}

// FindModel resolves an id or alias to its entry. Unknown names are retried
// with known intensity suffixes stripped one at a time from the right, so
// "o3-high" finds "o3" and "model-low-high" finds "model-low" before "model".
func (c *Catalog) FindModel(id string) (*ModelEntry, error) {
	if entry, ok := c.byName[id]; ok {
		return entry, nil
	}

	for _, suffix := range intensitySuffixes {
		if stripped, ok := strings.CutSuffix(id, suffix); ok && stripped != "" {
			if entry, err := c.FindModel(stripped); err == nil {
				return entry, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrModelNotFound, id)
}

// Models returns every entry in declaration order.
func (c *Catalog) Models() []*ModelEntry {
	return c.entries
}

// Version returns the catalog document version.
func (c *Catalog) Version() string {
	return c.version
}

// PricingFor implements cost.Lookup over the registry, mapping a not-found
// name onto the resolver's unknown-model sentinel.
func (c *Catalog) PricingFor(modelID string) (cost.Pricing, string, error) {
	entry, err := c.FindModel(modelID)
	if err != nil {
		return cost.Pricing{}, "", fmt.Errorf("%w: %q", cost.ErrUnknownModel, modelID)
	}
	return entry.Pricing, entry.ID, nil
}

var _ cost.Lookup = (*Catalog)(nil)
