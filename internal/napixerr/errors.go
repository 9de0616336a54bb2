// Package napixerr defines the error kinds that cross the dispatcher boundary.
//
// Each kind maps to exactly one HTTP status (see the dispatcher), so managers
// and field validators only ever need to return one of these, never an HTTP
// status directly.
package napixerr

import "fmt"

// NotFound signals that a resource identified by ID does not exist.
type NotFound struct {
	ID string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s not found", e.ID) }

// Duplicate signals a collision on create.
type Duplicate struct {
	ID string
}

func (e *Duplicate) Error() string { return fmt.Sprintf("%s already exists", e.ID) }

// FieldError is one field's validation failure, in Simple or Field (nested) form.
//
// Exactly one of Message or Fields is set: a leaf error carries Message, an
// aggregate carries Fields keyed by field name. This is the Go rendering of
// Design Notes §9's "ValidationError := Simple(message) | Field(map[string]ValidationError)".
type FieldError struct {
	Message string
	Fields  map[string]*FieldError
}

func (e *FieldError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d field error(s)", len(e.Fields))
}

// Simple builds a leaf FieldError carrying a plain message.
func Simple(msg string) *FieldError {
	return &FieldError{Message: msg}
}

// Flatten renders the error as the flat field->message map the HTTP layer sends
// as a JSON body (§7: "400 with body = map").
func (e *FieldError) Flatten() map[string]string {
	out := map[string]string{}
	e.flattenInto(out, "")
	return out
}

func (e *FieldError) flattenInto(out map[string]string, prefix string) {
	if e.Message != "" && len(e.Fields) == 0 {
		if prefix == "" {
			out["error"] = e.Message
		} else {
			out[prefix] = e.Message
		}
		return
	}
	for name, child := range e.Fields {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		child.flattenInto(out, key)
	}
}

// ValidationError is the error type raised by the validation pipeline (§4.A) and
// by Manager.ValidateID. It wraps a FieldError tree.
type ValidationError struct {
	*FieldError
}

func NewValidationError(fields map[string]string) *ValidationError {
	ff := &FieldError{Fields: map[string]*FieldError{}}
	for k, v := range fields {
		ff.Fields[k] = Simple(v)
	}
	return &ValidationError{FieldError: ff}
}

func NewSimpleValidationError(msg string) *ValidationError {
	return &ValidationError{FieldError: Simple(msg)}
}

// MethodNotAllowed carries the set of verbs the manager does advertise for this URL.
type MethodNotAllowed struct {
	Allowed []string
}

func (e *MethodNotAllowed) Error() string {
	return fmt.Sprintf("method not allowed, allow: %v", e.Allowed)
}

// NotAcceptable signals an unknown `?format=` value.
type NotAcceptable struct {
	Formats []string
}

func (e *NotAcceptable) Error() string {
	return fmt.Sprintf("not acceptable, known formats: %v", e.Formats)
}

// FieldConfigError is raised at manager/FieldSet construction time (startup), never
// at request time. It is fatal: the process should refuse to mount the offending
// manager.
type FieldConfigError struct {
	Field   string
	Message string
}

func (e *FieldConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
