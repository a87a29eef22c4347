package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultsFillEmptyInput(t *testing.T) {
	s := Schema{
		{Name: "streamName", Type: String, Default: "demo"},
		{Name: "limit", Type: String, Default: "10"},
	}

	result := Validate(s, map[string]any{})

	require.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, map[string]any{"streamName": "demo", "limit": "10"}, result.Data)
}

func TestValidate_EveryKeyPresentForMatchingInput(t *testing.T) {
	s := Schema{
		{Name: "name", Type: String, Required: true},
		{Name: "count", Type: Number, Default: 3.0},
		{Name: "verbose", Type: Boolean, Default: false},
		{Name: "tags", Type: Array, Default: []any{}},
		{Name: "meta", Type: Object, Default: map[string]any{}},
	}

	inputs := []map[string]any{
		{"name": "a"},
		{"name": "a", "count": "7", "verbose": "true"},
		{"name": "a", "count": 7.5, "verbose": true, "tags": []any{"x"}, "meta": map[string]any{"k": "v"}},
		{"name": "a", "tags": `["x","y"]`, "meta": `{"k":1}`},
	}

	for _, in := range inputs {
		result := Validate(s, in)
		require.True(t, result.Valid, "input %v: %v", in, result.Errors)
		for _, name := range s.Names() {
			assert.Contains(t, result.Data, name)
		}
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	s := Schema{
		{Name: "to", Type: String, Required: true},
		{Name: "subject", Type: String, Required: true},
		{Name: "note", Type: String},
	}

	result := Validate(s, map[string]any{"subject": ""})

	assert.False(t, result.Valid)
	assert.Nil(t, result.Data)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, FieldError{Field: "to", Code: MissingRequired, Message: "to is required"}, result.Errors[0])
	assert.Equal(t, "subject", result.Errors[1].Field)
}

func TestValidate_OptionalWithoutDefaultIsOmitted(t *testing.T) {
	s := Schema{{Name: "note", Type: String}}

	result := Validate(s, map[string]any{"note": ""})

	require.True(t, result.Valid)
	assert.NotContains(t, result.Data, "note")
}

func TestValidate_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		in    any
		want  any
		ok    bool
	}{
		{"string from number", Field{Type: String}, 5.0, "5", true},
		{"string from bool", Field{Type: String}, true, "true", true},
		{"string from object", Field{Type: String}, map[string]any{"a": 1.0}, `{"a":1}`, true},
		{"number from string", Field{Type: Number}, " 12.5 ", 12.5, true},
		{"number from int", Field{Type: Number}, 4, 4.0, true},
		{"number rejects text", Field{Type: Number}, "twelve", nil, false},
		{"number rejects NaN", Field{Type: Number}, "NaN", nil, false},
		{"boolean true string", Field{Type: Boolean}, "true", true, true},
		{"boolean one string", Field{Type: Boolean}, "1", true, true},
		{"boolean other string", Field{Type: Boolean}, "yes", false, true},
		{"boolean from number", Field{Type: Boolean}, 2.0, true, true},
		{"boolean from zero", Field{Type: Boolean}, 0.0, false, true},
		{"boolean from empty slice", Field{Type: Boolean}, []any{}, false, true},
		{"array pass through", Field{Type: Array}, []any{1.0}, []any{1.0}, true},
		{"array from string", Field{Type: Array}, `["a"]`, []any{"a"}, true},
		{"array rejects object string", Field{Type: Array}, `{"a":1}`, nil, false},
		{"array rejects number", Field{Type: Array}, 3.0, nil, false},
		{"object from string", Field{Type: Object}, `{"a":"b"}`, map[string]any{"a": "b"}, true},
		{"object rejects garbage", Field{Type: Object}, "{", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.field.Name = "v"
			result := Validate(Schema{tt.field}, map[string]any{"v": tt.in})
			if !tt.ok {
				require.False(t, result.Valid)
				require.Len(t, result.Errors, 1)
				assert.Equal(t, InvalidType, result.Errors[0].Code)
				return
			}
			require.True(t, result.Valid, "%v", result.Errors)
			assert.Equal(t, tt.want, result.Data["v"])
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	s := Schema{
		{Name: "a", Type: Number},
		{Name: "b", Type: Array},
		{Name: "c", Type: String, Required: true},
	}

	result := Validate(s, map[string]any{"a": "x", "b": "y"})

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, []Code{InvalidType, InvalidType, MissingRequired},
		[]Code{result.Errors[0].Code, result.Errors[1].Code, result.Errors[2].Code})
}

func TestValidate_OpaqueJSONRoundTrip(t *testing.T) {
	s := Schema{{
		Name: "payload",
		Type: JSON,
		Nested: &Node{
			Type:       Object,
			Properties: map[string]*Node{"x": {Type: Number}},
		},
	}}

	result := Validate(s, map[string]any{"payload": `{"x":5}`})

	require.True(t, result.Valid, "%v", result.Errors)
	assert.Equal(t, map[string]any{"x": 5.0}, result.Data["payload"])
}

func TestValidate_OpaqueJSONAlreadyStructured(t *testing.T) {
	s := Schema{{Name: "ids", Type: JSON, Nested: &Node{Type: Array, Items: &Node{Type: String}}}}

	result := Validate(s, map[string]any{"ids": []any{"a", "b"}})

	require.True(t, result.Valid)
	assert.Equal(t, []any{"a", "b"}, result.Data["ids"])
}

func TestValidate_OpaqueJSONParseFailureAborts(t *testing.T) {
	s := Schema{
		{Name: "missing", Type: String, Required: true},
		{Name: "payload", Type: JSON, Nested: &Node{Type: Object}},
	}

	result := Validate(s, map[string]any{"payload": `{"x":`})

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, InvalidJSON, result.Errors[0].Code)
	assert.Equal(t, "payload", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "payload is not valid JSON")
}

func TestValidate_OpaqueJSONNestedErrors(t *testing.T) {
	s := Schema{{
		Name: "record",
		Type: JSON,
		Nested: &Node{
			Type:     Object,
			Required: []string{"id"},
			Properties: map[string]*Node{
				"count": {Type: Number},
				"tags":  {Type: Array, Items: &Node{Type: String}},
			},
		},
	}}

	result := Validate(s, map[string]any{"record": `{"count":"3","tags":["a",2]}`})

	require.False(t, result.Valid)
	fields := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{"record.id", "record.count", "record.tags[1]"}, fields)
}

func TestValidate_OpaqueJSONDefaultAndNull(t *testing.T) {
	s := Schema{
		{Name: "filter", Type: JSON, Default: `{"all":true}`, Nested: &Node{Type: Object}},
		{Name: "ids", Type: JSON, Nested: &Node{Type: Array}},
	}

	result := Validate(s, map[string]any{"ids": "null"})

	require.True(t, result.Valid)
	assert.Equal(t, map[string]any{"all": true}, result.Data["filter"])
	assert.NotContains(t, result.Data, "ids")

	result = Validate(s, map[string]any{"filter": "null"})
	require.True(t, result.Valid)
	assert.Equal(t, map[string]any{"all": true}, result.Data["filter"])

	result = Validate(Schema{{Name: "ids", Type: JSON, Required: true}}, map[string]any{"ids": "null"})
	require.False(t, result.Valid)
	assert.Equal(t, MissingRequired, result.Errors[0].Code)
}

func TestValidateNode(t *testing.T) {
	node := &Node{
		Type:     Object,
		Required: []string{"name"},
		Properties: map[string]*Node{
			"name":  {Type: String},
			"inner": {Type: Object, Properties: map[string]*Node{"ok": {Type: Boolean}}},
			"any":   {},
		},
	}

	assert.Empty(t, ValidateNode("v", node, map[string]any{"name": "n", "extra": 1.0, "any": []any{}}))

	errs := ValidateNode("v", node, map[string]any{"inner": map[string]any{"ok": "yes"}})
	require.Len(t, errs, 2)
	assert.Equal(t, MissingRequired, errs[0].Code)
	assert.Equal(t, "v.name", errs[0].Field)
	assert.Equal(t, "v.inner.ok", errs[1].Field)

	errs = ValidateNode("", &Node{Type: Array}, "nope")
	require.Len(t, errs, 1)
	assert.Equal(t, InvalidType, errs[0].Code)

	assert.Nil(t, ValidateNode("v", nil, 42))
}
