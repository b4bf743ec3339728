package model

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// catalogFile is the on-disk shape of a model override file. Entries
// replace builtin models with the same id, so deployments can correct
// pricing or register private models without a rebuild.
//
//	models:
//	  - id: claude-internal-ft
//	    context_window: 200000
//	    input_per_million: 3.0
//	    output_per_million: 15.0
//	    aliases: [ft]
type catalogFile struct {
	Models []ModelInfo `yaml:"models"`
}

// LoadOverrides merges model definitions from a YAML file into the
// catalog. A missing file is not an error; a malformed one is.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read model catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse model catalog %s: %w", path, err)
	}

	for _, info := range file.Models {
		if err := c.Add(info); err != nil {
			return fmt.Errorf("model catalog %s: %w", path, err)
		}
	}
	return nil
}
