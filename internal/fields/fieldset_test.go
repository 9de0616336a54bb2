package fields

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serversFieldSet(t *testing.T) *FieldSet {
	t.Helper()
	name, err := New("name", "web1")
	require.NoError(t, err)
	port, err := New("port", 80)
	require.NoError(t, err)
	alive, err := New("alive", nil, Computed(), WithType(reflect.TypeOf(true)))
	require.NoError(t, err)
	return NewFieldSet(name, port, alive)
}

func TestValidate_RequiredFieldMissing(t *testing.T) {
	fs := serversFieldSet(t)

	_, err := fs.Validate(Resource{"port": 80}, false)
	require.Error(t, err)
	assert.Equal(t, "Required", err.(interface{ Flatten() map[string]string }).Flatten()["name"])
}

func TestValidate_BadTypeMessage(t *testing.T) {
	fs := serversFieldSet(t)

	_, err := fs.Validate(Resource{"name": "web1", "port": "eighty"}, true)
	require.Error(t, err)
	msg := err.(interface{ Flatten() map[string]string }).Flatten()["port"]
	assert.Contains(t, msg, "Bad type: port has type string but should be int")
}

func TestValidate_ComputedNeverAccepted(t *testing.T) {
	fs := serversFieldSet(t)

	out, err := fs.Validate(Resource{"name": "web1", "port": 80, "alive": false}, false)
	require.NoError(t, err)
	_, present := out["alive"]
	assert.False(t, present, "computed field must never appear in validate output")
}

func TestValidate_NotEditableStrippedOnEdit(t *testing.T) {
	name, _ := New("name", "web1")
	port, _ := New("port", 80, NotEditable())
	fs := NewFieldSet(name, port)

	out, err := fs.Validate(Resource{"name": "web2", "port": 81}, true)
	require.NoError(t, err)
	assert.Contains(t, out, "name")
	assert.NotContains(t, out, "port")
}

func TestSerializeUnserializeRoundTrip(t *testing.T) {
	fs := serversFieldSet(t)
	resource := Resource{"name": "web1", "port": 80, "alive": true}

	wire := fs.Serialize(resource)
	back := fs.Unserialize(wire)

	assert.Equal(t, resource, back)
}

func TestGetExampleResource_OmitsComputed(t *testing.T) {
	fs := serversFieldSet(t)
	example := fs.GetExampleResource()

	assert.Equal(t, Resource{"name": "web1", "port": 80}, example)
}

func TestValidate_OptionalFieldOmitted(t *testing.T) {
	name, _ := New("name", "web1")
	desc, _ := New("description", "d", Optional())
	fs := NewFieldSet(name, desc)

	out, err := fs.Validate(Resource{"name": "web1"}, false)
	require.NoError(t, err)
	assert.NotContains(t, out, "description")
}

func TestValidate_DefaultOnNullForwardsNil(t *testing.T) {
	alive, _ := New("alive", true, DefaultOnNull())
	fs := NewFieldSet(alive)
	fs.Validator("alive", func(v any) (any, error) {
		if v == nil {
			return false, nil
		}
		return v, nil
	}, "defaults to false")

	out, err := fs.Validate(Resource{}, false)
	require.NoError(t, err)
	assert.Equal(t, false, out["alive"])
}
