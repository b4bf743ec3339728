package model

import (
	"fmt"
	"sort"
	"strings"
)

// ModelInfo describes one model: its context capacity, per-token
// pricing, and how it is addressed on each backend. Capacity is
// model-specific configuration, never a constant baked into governors.
type ModelInfo struct {
	// ID is the canonical model identifier.
	ID string `yaml:"id"`
	// ContextWindow is the context capacity in tokens.
	ContextWindow int `yaml:"context_window"`
	// InputPerMillion is the USD cost per 1M input tokens.
	InputPerMillion float64 `yaml:"input_per_million"`
	// OutputPerMillion is the USD cost per 1M output tokens.
	OutputPerMillion float64 `yaml:"output_per_million"`
	// Aliases are short names accepted in place of ID.
	Aliases []string `yaml:"aliases"`
	// BedrockID is the cross-region inference profile used when the
	// model is served through Bedrock. Empty when unavailable there.
	BedrockID string `yaml:"bedrock_id"`
}

// DefaultModelID is used when the caller does not pick a model.
const DefaultModelID = "claude-sonnet-4-5-20250929"

// builtinModels is the known Claude family. Pricing is per current
// published rates; override via a catalog file when they drift.
var builtinModels = []ModelInfo{
	{
		ID:               "claude-opus-4-5-20251101",
		ContextWindow:    200000,
		InputPerMillion:  15.00,
		OutputPerMillion: 75.00,
		Aliases:          []string{"opus"},
		BedrockID:        "us.anthropic.claude-opus-4-5-20251101-v1:0",
	},
	{
		ID:               "claude-opus-4-1-20250805",
		ContextWindow:    200000,
		InputPerMillion:  15.00,
		OutputPerMillion: 75.00,
		BedrockID:        "us.anthropic.claude-opus-4-1-20250805-v1:0",
	},
	{
		ID:               "claude-sonnet-4-5-20250929",
		ContextWindow:    200000,
		InputPerMillion:  3.00,
		OutputPerMillion: 15.00,
		Aliases:          []string{"sonnet"},
		BedrockID:        "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	},
	{
		ID:               "claude-sonnet-4-20250514",
		ContextWindow:    200000,
		InputPerMillion:  3.00,
		OutputPerMillion: 15.00,
		BedrockID:        "us.anthropic.claude-sonnet-4-20250514-v1:0",
	},
	{
		ID:               "claude-3-7-sonnet-20250219",
		ContextWindow:    200000,
		InputPerMillion:  3.00,
		OutputPerMillion: 15.00,
		BedrockID:        "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	},
	{
		ID:               "claude-haiku-4-5-20251001",
		ContextWindow:    200000,
		InputPerMillion:  1.00,
		OutputPerMillion: 5.00,
		Aliases:          []string{"haiku"},
		BedrockID:        "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	},
	{
		ID:               "claude-3-5-haiku-20241022",
		ContextWindow:    200000,
		InputPerMillion:  0.80,
		OutputPerMillion: 4.00,
		BedrockID:        "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	},
}

// Catalog maps model ids and aliases to ModelInfo.
type Catalog struct {
	byID    map[string]ModelInfo
	aliases map[string]string
}

// NewCatalog returns a catalog seeded with the builtin Claude family.
func NewCatalog() *Catalog {
	c := &Catalog{
		byID:    make(map[string]ModelInfo),
		aliases: make(map[string]string),
	}
	for _, info := range builtinModels {
		c.put(info)
	}
	return c
}

func (c *Catalog) put(info ModelInfo) {
	c.byID[info.ID] = info
	for _, alias := range info.Aliases {
		c.aliases[alias] = info.ID
	}
}

// Add registers a model, replacing any existing entry with the same id.
func (c *Catalog) Add(info ModelInfo) error {
	if info.ID == "" {
		return fmt.Errorf("model entry has no id")
	}
	if info.ContextWindow <= 0 {
		return fmt.Errorf("model %q: context window must be positive, got %d", info.ID, info.ContextWindow)
	}
	c.put(info)
	return nil
}

// Lookup resolves an id or alias to its ModelInfo.
func (c *Catalog) Lookup(id string) (ModelInfo, bool) {
	if canonical, ok := c.aliases[id]; ok {
		id = canonical
	}
	info, ok := c.byID[id]
	return info, ok
}

// Default returns the default model's info.
func (c *Catalog) Default() ModelInfo {
	info, ok := c.byID[DefaultModelID]
	if !ok {
		// Overridden away by a catalog file; fall back to any entry.
		for _, info := range c.byID {
			return info
		}
	}
	return info
}

// List returns all models ordered by id.
func (c *Catalog) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(c.byID))
	for _, info := range c.byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ref is a typed model reference: which provider serves it and the
// catalog entry it resolves to.
type Ref struct {
	Provider Provider
	Info     ModelInfo
}

// Resolve turns a model spec into a typed Ref. Accepted forms: "" (the
// default model), a bare id or alias, or "provider/id". Unknown
// providers and models fail here, at construction.
func (c *Catalog) Resolve(spec string, defaultProvider Provider) (Ref, error) {
	provider := defaultProvider
	name := spec

	if i := strings.IndexByte(spec, '/'); i >= 0 {
		provider = Provider(spec[:i])
		name = spec[i+1:]
		if !provider.Valid() {
			return Ref{}, fmt.Errorf("unknown provider %q in model spec %q", spec[:i], spec)
		}
	}
	if !provider.Valid() {
		return Ref{}, fmt.Errorf("unknown provider %q", provider)
	}

	var info ModelInfo
	if name == "" {
		info = c.Default()
	} else {
		var ok bool
		info, ok = c.Lookup(name)
		if !ok {
			return Ref{}, fmt.Errorf("unknown model %q (try `grind models`)", name)
		}
	}

	if provider == ProviderBedrock && info.BedrockID == "" {
		return Ref{}, fmt.Errorf("model %q is not available through bedrock", info.ID)
	}

	return Ref{Provider: provider, Info: info}, nil
}
