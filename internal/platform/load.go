package platform

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed platforms_schema.json
var platformsSchema string

type registryFile struct {
	Platforms []Config `yaml:"platforms" json:"platforms"`
}

// LoadRegistry reads a platform registry from a YAML file, validates it
// against the embedded schema, and resolves skills paths the same way
// NewRegistry does for the built-in set.
func LoadRegistry(path string, opts RegistryOptions) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform registry: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse platform registry %s: %w", path, err)
	}
	if err := validateRegistryDoc(doc); err != nil {
		return nil, fmt.Errorf("invalid platform registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse platform registry %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Platforms))
	for _, cfg := range file.Platforms {
		if seen[cfg.Name] {
			return nil, fmt.Errorf("invalid platform registry %s: duplicate platform %q", path, cfg.Name)
		}
		seen[cfg.Name] = true
	}

	return newRegistry(file.Platforms, opts), nil
}

// validateRegistryDoc checks the decoded YAML against the registry schema.
// The document round-trips through encoding/json because the validator
// operates on json-decoded value types.
func validateRegistryDoc(doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var jsonDoc any
	if err := json.Unmarshal(b, &jsonDoc); err != nil {
		return err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("platforms_schema.json", strings.NewReader(platformsSchema)); err != nil {
		return err
	}
	schema, err := c.Compile("platforms_schema.json")
	if err != nil {
		return err
	}
	return schema.Validate(jsonDoc)
}
