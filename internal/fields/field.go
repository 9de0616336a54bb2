// Package fields implements the declarative resource-field model (component A):
// ResourceField/FieldSet, their construction-time invariants, and the
// validate/serialize/unserialize pipeline that derives from them.
//
// Grounded in napixd.managers.resource_fields (original_source/napixd/managers/resource_fields.py).
// Go has no descriptor protocol and no reflection-by-convention for
// validate_resource_<name>, so callers register per-field validators explicitly
// through FieldSet.Validator (Design Notes §9's builder-style replacement for
// attribute-name reflection).
package fields

import (
	"fmt"
	"reflect"

	"github.com/napix/napixd/internal/napixerr"
)

// Typing selects whether a field's value is type-checked at validation time.
type Typing int

const (
	// Static enforces reflect.TypeOf(value) == Type (ignored when value is nil
	// and DefaultOnNull is set).
	Static Typing = iota
	// DynamicTyping skips the type check entirely.
	DynamicTyping
)

// Serializer transforms a raw stored value into its wire representation.
type Serializer func(v any) any

// Unserializer extracts a raw value back out of its wire representation.
type Unserializer func(v any) any

func identitySerializer(v any) any   { return v }
func identityUnserializer(v any) any { return v }

// Validator is the Go equivalent of validate_resource_<name>: it may transform
// the value (e.g. trimming a string) and returns a napixerr.ValidationError
// (unwrapped; the FieldSet wraps it under the field's name) on rejection.
type Validator func(value any) (any, error)

// Option configures a ResourceField at construction time.
type Option func(*ResourceField) error

// ResourceField is one field declaration (spec §3).
type ResourceField struct {
	Name          string
	Example       any
	Type          reflect.Type
	Typing        Typing
	Optional      bool
	Computed      bool
	Editable      bool
	DefaultOnNull bool
	Choices       []any
	Serialize     Serializer
	Unserialize   Unserializer
	Extra         map[string]any

	validator   Validator
	description string
}

// Required mirrors ResourceField.required: "not (optional or computed)".
func (f *ResourceField) Required() bool {
	return !(f.Optional || f.Computed)
}

// Optional marks the field as not required.
func Optional() Option {
	return func(f *ResourceField) error { f.Optional = true; return nil }
}

// Computed marks the field as server-derived: never accepted from input, never
// editable.
func Computed() Option {
	return func(f *ResourceField) error { f.Computed = true; f.Editable = false; return nil }
}

// NotEditable marks the field immutable once created (PUT strips it).
func NotEditable() Option {
	return func(f *ResourceField) error { f.Editable = false; return nil }
}

// DefaultOnNull lets the field's validator see nil when the input omits the key,
// instead of treating the omission as a required-field error.
func DefaultOnNull() Option {
	return func(f *ResourceField) error { f.DefaultOnNull = true; return nil }
}

// WithType pins the field's static type explicitly instead of deriving it from
// Example (needed when Computed and no example is given).
func WithType(t reflect.Type) Option {
	return func(f *ResourceField) error { f.Type = t; return nil }
}

// Dynamic disables the isinstance-style type check.
func Dynamic() Option {
	return func(f *ResourceField) error { f.Typing = DynamicTyping; return nil }
}

// Choices restricts accepted values to a fixed enumeration (checked after the
// static type check, before the custom validator).
func Choices(values ...any) Option {
	return func(f *ResourceField) error { f.Choices = values; return nil }
}

// WithSerializer overrides the outbound (serialize) transform.
func WithSerializer(s Serializer) Option {
	return func(f *ResourceField) error { f.Serialize = s; return nil }
}

// WithUnserializer overrides the inbound (unserialize) transform.
func WithUnserializer(u Unserializer) Option {
	return func(f *ResourceField) error { f.Unserialize = u; return nil }
}

// Extra attaches opaque client-facing metadata (description, display_order, ...).
func Extra(kv map[string]any) Option {
	return func(f *ResourceField) error {
		for k, v := range kv {
			f.Extra[k] = v
		}
		return nil
	}
}

// New builds a ResourceField, enforcing the same construction-time invariants as
// napixd.managers.resource_fields.ResourceField.__init__:
//
//   - example is mandatory unless Computed and an explicit type is given.
//   - if Typing is Static and not Computed, type(example) must equal Type.
//   - Computed implies Editable=false.
func New(name string, example any, opts ...Option) (*ResourceField, error) {
	f := &ResourceField{
		Name:        name,
		Example:     example,
		Editable:    true,
		Serialize:   identitySerializer,
		Unserialize: identityUnserializer,
		Extra:       map[string]any{},
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, &napixerr.FieldConfigError{Field: name, Message: err.Error()}
		}
	}

	if example == nil && !f.Computed {
		return nil, &napixerr.FieldConfigError{Field: name, Message: "missing example"}
	}
	if example == nil && f.Type == nil {
		return nil, &napixerr.FieldConfigError{Field: name, Message: "computed field needs an explicit type when no example is given"}
	}

	if f.Type == nil {
		f.Type = reflect.TypeOf(example)
	}

	if f.Typing == Static && !f.Computed && example != nil {
		if reflect.TypeOf(example) != f.Type {
			return nil, &napixerr.FieldConfigError{
				Field:   name,
				Message: fmt.Sprintf("example is not of type %s", f.Type),
			}
		}
	}

	return f, nil
}

// checkType mirrors ResourceField.check_type.
func (f *ResourceField) checkType(value any) bool {
	if value == nil && f.DefaultOnNull {
		return true
	}
	if f.Typing == DynamicTyping {
		return true
	}
	if value == nil {
		return false
	}
	return reflect.TypeOf(value) == f.Type
}

func (f *ResourceField) checkChoices(value any) bool {
	if len(f.Choices) == 0 {
		return true
	}
	for _, c := range f.Choices {
		if c == value {
			return true
		}
	}
	return false
}

// validate runs the type check, the choices check, then the custom validator,
// mirroring ResourceField.validate.
func (f *ResourceField) validate(value any) (any, error) {
	if !f.checkType(value) {
		return nil, napixerr.Simple(fmt.Sprintf(
			"Bad type: %s has type %s but should be %s", f.Name, goTypeName(value), f.Type))
	}
	if !f.checkChoices(value) {
		return nil, napixerr.Simple(fmt.Sprintf("%v is not one of %v", value, f.Choices))
	}
	if f.validator != nil {
		v, err := f.validator(value)
		if err != nil {
			return nil, napixerr.Simple(err.Error())
		}
		return v, nil
	}
	return value, nil
}

func goTypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
