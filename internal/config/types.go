package config

import (
	"fmt"

	"github.com/turbolytics/resultset/pkg/persistence"
)

// TypeField selects one record field for a configured type, optionally renamed.
type TypeField struct {
	Name     string `yaml:"name"`
	As       string `yaml:"as,omitempty"`
	Required bool   `yaml:"required,omitempty"`
}

// Type is a hydration target declared in configuration. Hydrated items are
// records holding the selected fields in declaration order.
type Type struct {
	Name   string      `yaml:"name"`
	Fields []TypeField `yaml:"fields"`
}

func (t Type) Hydration() persistence.Type {
	fields := t.Fields
	return persistence.TypeFunc(t.Name, func(r *persistence.Record) (any, error) {
		names := make([]string, len(fields))
		values := make([]any, len(fields))
		for i, f := range fields {
			v, _ := r.Get(f.Name)
			if v == nil && f.Required {
				return nil, fmt.Errorf("required field %q is missing or null", f.Name)
			}

			names[i] = f.Name
			if f.As != "" {
				names[i] = f.As
			}
			values[i] = v
		}
		return persistence.NewRecord(names, values), nil
	})
}

// InitializeTypes registers the configured types into registry, creating one when nil.
func InitializeTypes(types []Type, registry *persistence.Types) *persistence.Types {
	if registry == nil {
		registry = persistence.NewTypes()
	}
	for _, t := range types {
		registry.Register(t.Name, t.Hydration())
	}
	return registry
}
