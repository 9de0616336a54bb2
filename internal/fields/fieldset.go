package fields

import (
	"github.com/napix/napixd/internal/napixerr"
)

// Resource is one JSON-object instance of a manager's schema (GLOSSARY).
type Resource = map[string]any

// FieldSchema is the wire shape of one field in the class view
// (_napix_resource_fields / _napix_help), mirroring ResourceField.resource_field().
type FieldSchema struct {
	Example       any    `json:"example"`
	Type          string `json:"type"`
	Typing        string `json:"typing"`
	Optional      bool   `json:"optional"`
	Computed      bool   `json:"computed"`
	Editable      bool   `json:"editable"`
	DefaultOnNull bool   `json:"default_on_null"`
	Choices       []any  `json:"choices,omitempty"`
	Validation    string `json:"validation,omitempty"`
	Extra         map[string]any
}

// FieldSet is an ordered collection of ResourceFields attached to a Manager
// (spec §3, "FieldSet"). A *FieldSet has no separate class/instance wrapper types
// the way the Python descriptor does; Schema() is the class view, Validate/
// Serialize/Unserialize are the instance view — both operate on the same value
// because Go has no descriptor protocol to split them.
type FieldSet struct {
	ordered []*ResourceField
	byName  map[string]*ResourceField
}

// NewFieldSet builds a FieldSet from fields built with fields.New, in declaration
// order (order matters: §4.A's validate walks fields "in declaration order").
func NewFieldSet(fs ...*ResourceField) *FieldSet {
	fset := &FieldSet{byName: map[string]*ResourceField{}}
	for _, f := range fs {
		fset.ordered = append(fset.ordered, f)
		fset.byName[f.Name] = f
	}
	return fset
}

// Validator registers the per-field validator for name (the Go equivalent of
// defining validate_resource_<name> on a manager), plus the human-readable
// description that used to be scraped from its docstring for _napix_help.
func (fs *FieldSet) Validator(name string, v Validator, description string) *FieldSet {
	if f, ok := fs.byName[name]; ok {
		f.validator = v
		f.description = description
	}
	return fs
}

// Field returns the named field, or nil.
func (fs *FieldSet) Field(name string) *ResourceField {
	return fs.byName[name]
}

// Names returns the field names in declaration order.
func (fs *FieldSet) Names() []string {
	out := make([]string, len(fs.ordered))
	for i, f := range fs.ordered {
		out[i] = f.Name
	}
	return out
}

// Schema is the class view used by _napix_resource_fields / _napix_help / doc
// assembly.
func (fs *FieldSet) Schema() map[string]FieldSchema {
	out := make(map[string]FieldSchema, len(fs.ordered))
	for _, f := range fs.ordered {
		typing := "static"
		if f.Typing == DynamicTyping {
			typing = "dynamic"
		}
		out[f.Name] = FieldSchema{
			Example:       f.Example,
			Type:          f.Type.String(),
			Typing:        typing,
			Optional:      f.Optional,
			Computed:      f.Computed,
			Editable:      f.Editable,
			DefaultOnNull: f.DefaultOnNull,
			Choices:       f.Choices,
			Validation:    f.description,
			Extra:         f.Extra,
		}
	}
	return out
}

// GetExampleResource returns {name: example} for every non-computed field; it
// feeds _napix_new.
func (fs *FieldSet) GetExampleResource() Resource {
	out := Resource{}
	for _, f := range fs.ordered {
		if f.Computed {
			continue
		}
		out[f.Name] = f.Example
	}
	return out
}

// Validate runs the §4.A algorithm: walk fields in declaration order, skipping
// computed fields (always) and non-editable fields (when forEdit), applying
// required/default-on-null/type/choices/custom-validator checks, and returning
// the aggregated validated dict.
func (fs *FieldSet) Validate(input Resource, forEdit bool) (Resource, error) {
	out := Resource{}
	fieldErrs := map[string]string{}

	for _, f := range fs.ordered {
		if f.Computed {
			continue
		}
		if forEdit && !f.Editable {
			continue
		}

		value, present := input[f.Name]
		if !present {
			switch {
			case f.DefaultOnNull:
				value = nil
			case !f.Required():
				continue
			default:
				fieldErrs[f.Name] = "Required"
				continue
			}
		}

		validated, err := f.validate(value)
		if err != nil {
			fieldErrs[f.Name] = err.Error()
			continue
		}
		out[f.Name] = validated
	}

	if len(fieldErrs) > 0 {
		return nil, napixerr.NewValidationError(fieldErrs)
	}
	return out, nil
}

// Serialize applies each field's outbound transform to keys present in raw,
// silently dropping keys not declared in the schema.
func (fs *FieldSet) Serialize(raw Resource) Resource {
	out := Resource{}
	for _, f := range fs.ordered {
		if v, ok := raw[f.Name]; ok {
			out[f.Name] = f.Serialize(v)
		}
	}
	return out
}

// Unserialize applies each field's inbound transform to keys present in raw,
// silently dropping unknown keys.
func (fs *FieldSet) Unserialize(raw Resource) Resource {
	out := Resource{}
	for _, f := range fs.ordered {
		if v, ok := raw[f.Name]; ok {
			out[f.Name] = f.Unserialize(v)
		}
	}
	return out
}
