// Package schema holds the statically loaded content model: the node type
// graph and the aspect (trait) definitions.
//
// The model is a partial order over qualified type names. Type narrowing
// and broadening rules, folder/file derivation, and the set of legal
// properties for a node all reduce to lookups against this graph, not to
// inheritance in the host language.
package schema

import (
	"fmt"

	"github.com/treelinehq/canopy/pkg/repo"
)

// PropertyType is the value kind a property definition accepts.
type PropertyType string

const (
	PropertyText     PropertyType = "text"
	PropertyBoolean  PropertyType = "boolean"
	PropertyInteger  PropertyType = "integer"
	PropertyDateTime PropertyType = "datetime"
	PropertyNodeRef  PropertyType = "noderef"
)

// PropertyDef declares one property a type or aspect contributes.
type PropertyDef struct {
	Name repo.QName   `yaml:"name"`
	Type PropertyType `yaml:"type"`
}

// TypeDef declares one node type.
type TypeDef struct {
	// Name is the qualified type name.
	Name repo.QName `yaml:"name"`

	// Parent is the single supertype; empty only for the root type.
	Parent repo.QName `yaml:"parent,omitempty"`

	// Abstract types cannot be instantiated.
	Abstract bool `yaml:"abstract,omitempty"`

	// Protected types are system-reserved: clients can neither create
	// nodes of this type nor change a node's type to it.
	Protected bool `yaml:"protected,omitempty"`

	// Structural marks site machinery (sites, site containers) that
	// refuses copying.
	Structural bool `yaml:"structural,omitempty"`

	// Properties are the properties contributed by this type.
	Properties []PropertyDef `yaml:"properties,omitempty"`
}

// AspectDef declares one optional trait bundle.
type AspectDef struct {
	Name       repo.QName    `yaml:"name"`
	Properties []PropertyDef `yaml:"properties,omitempty"`
}

// Model is the loaded type graph. Immutable after loading; safe for
// concurrent readers.
type Model struct {
	types   map[repo.QName]*TypeDef
	aspects map[repo.QName]*AspectDef
}

// TypeExists reports whether the model defines the type.
func (m *Model) TypeExists(name repo.QName) bool {
	_, ok := m.types[name]
	return ok
}

// AspectExists reports whether the model defines the aspect.
func (m *Model) AspectExists(name repo.QName) bool {
	_, ok := m.aspects[name]
	return ok
}

// IsSubtype reports whether t equals ancestor or descends from it along
// the parent chain.
func (m *Model) IsSubtype(t, ancestor repo.QName) bool {
	for current := t; current != ""; {
		if current == ancestor {
			return true
		}
		def, ok := m.types[current]
		if !ok {
			return false
		}
		current = def.Parent
	}
	return false
}

// IsFolderType reports whether t derives the is-folder boolean.
func (m *Model) IsFolderType(t repo.QName) bool {
	return m.IsSubtype(t, repo.TypeFolder)
}

// IsFileType reports whether t derives the is-file boolean.
func (m *Model) IsFileType(t repo.QName) bool {
	return m.IsSubtype(t, repo.TypeContent)
}

// IsProtectedType reports whether t is system-reserved.
func (m *Model) IsProtectedType(t repo.QName) bool {
	def, ok := m.types[t]
	return ok && def.Protected
}

// IsStructuralType reports whether t is site machinery (refuses copying).
func (m *Model) IsStructuralType(t repo.QName) bool {
	def, ok := m.types[t]
	return ok && def.Structural
}

// IsCreatable reports whether clients may instantiate t: the type must
// exist, be concrete, and not be system-reserved.
func (m *Model) IsCreatable(t repo.QName) bool {
	def, ok := m.types[t]
	return ok && !def.Abstract && !def.Protected
}

// CanChangeType reports whether a node of type from may become type to.
// Only narrowing is allowed: to must be a strict subtype of from, concrete
// and not system-reserved.
func (m *Model) CanChangeType(from, to repo.QName) bool {
	if from == to {
		return false
	}
	return m.IsCreatable(to) && m.IsSubtype(to, from)
}

// AspectProperties returns the property names an aspect contributes.
func (m *Model) AspectProperties(aspect repo.QName) []repo.QName {
	def, ok := m.aspects[aspect]
	if !ok {
		return nil
	}
	names := make([]repo.QName, 0, len(def.Properties))
	for _, p := range def.Properties {
		names = append(names, p.Name)
	}
	return names
}

// PropertyLegal reports whether a property is declared by the type's
// ancestor chain or by one of the applied aspects, and returns its
// definition when found.
func (m *Model) PropertyLegal(t repo.QName, aspects []repo.QName, prop repo.QName) (PropertyDef, bool) {
	for current := t; current != ""; {
		def, ok := m.types[current]
		if !ok {
			break
		}
		for _, p := range def.Properties {
			if p.Name == prop {
				return p, true
			}
		}
		current = def.Parent
	}
	for _, aspect := range aspects {
		def, ok := m.aspects[aspect]
		if !ok {
			continue
		}
		for _, p := range def.Properties {
			if p.Name == prop {
				return p, true
			}
		}
	}
	return PropertyDef{}, false
}

// CheckValue validates a property value against its declared kind.
//
// Values arrive from JSON payloads, so numbers may be float64 and
// datetimes strings; the check is deliberately permissive about
// representations while rejecting outright kind mismatches.
func CheckValue(def PropertyDef, value any) error {
	if value == nil {
		return nil
	}
	switch def.Type {
	case PropertyBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("property %s expects a boolean, got %T", def.Name, value)
		}
	case PropertyInteger:
		switch value.(type) {
		case int, int32, int64, float64:
		default:
			return fmt.Errorf("property %s expects an integer, got %T", def.Name, value)
		}
	case PropertyText, PropertyDateTime, PropertyNodeRef:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("property %s expects a string, got %T", def.Name, value)
		}
	}
	return nil
}
