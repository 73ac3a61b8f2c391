package schema

import (
	_ "embed"
	"fmt"
	"io"

	"github.com/treelinehq/canopy/pkg/repo"
	"gopkg.in/yaml.v3"
)

//go:embed model.yaml
var defaultModelYAML []byte

// modelFile is the YAML shape of a content model definition.
type modelFile struct {
	Types   []TypeDef   `yaml:"types"`
	Aspects []AspectDef `yaml:"aspects"`
}

// Load parses a content model from YAML.
//
// The model must be internally consistent: every parent reference must
// resolve, exactly one root type (no parent) must exist, and names must be
// unique. Cycles in the parent graph are rejected.
func Load(r io.Reader) (*Model, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Model from YAML bytes.
func Parse(raw []byte) (*Model, error) {
	var file modelFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	model := &Model{
		types:   make(map[repo.QName]*TypeDef, len(file.Types)),
		aspects: make(map[repo.QName]*AspectDef, len(file.Aspects)),
	}

	roots := 0
	for i := range file.Types {
		def := file.Types[i]
		if def.Name == "" {
			return nil, fmt.Errorf("type %d: missing name", i)
		}
		if _, exists := model.types[def.Name]; exists {
			return nil, fmt.Errorf("duplicate type %q", def.Name)
		}
		if def.Parent == "" {
			roots++
		}
		model.types[def.Name] = &def
	}
	if roots != 1 {
		return nil, fmt.Errorf("model must declare exactly one root type, found %d", roots)
	}

	// Verify parent references resolve and the graph is acyclic.
	for name, def := range model.types {
		seen := map[repo.QName]bool{name: true}
		for current := def.Parent; current != ""; {
			parent, ok := model.types[current]
			if !ok {
				return nil, fmt.Errorf("type %q: unknown parent %q", name, current)
			}
			if seen[current] {
				return nil, fmt.Errorf("type %q: cycle through %q", name, current)
			}
			seen[current] = true
			current = parent.Parent
		}
	}

	for i := range file.Aspects {
		def := file.Aspects[i]
		if def.Name == "" {
			return nil, fmt.Errorf("aspect %d: missing name", i)
		}
		if _, exists := model.aspects[def.Name]; exists {
			return nil, fmt.Errorf("duplicate aspect %q", def.Name)
		}
		model.aspects[def.Name] = &def
	}

	return model, nil
}

// Default returns the built-in content model.
func Default() *Model {
	model, err := Parse(defaultModelYAML)
	if err != nil {
		// The embedded model is part of the binary; failing to parse it is
		// a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded content model is invalid: %v", err))
	}
	return model
}
