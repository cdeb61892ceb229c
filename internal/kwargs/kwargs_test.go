package kwargs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/models"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expr     string
		expected any
		wantErr  bool
	}{
		{name: "empty", expr: "", expected: map[string]any{}},
		{name: "blank", expr: "   ", expected: map[string]any{}},
		{name: "single quoted keys", expr: "{'limit': 10}", expected: map[string]any{"limit": 10}},
		{
			name: "nested values",
			expr: `{"path": "flights", "ids": [1, 2.5], "active": True, "since": None, "opts": {'x': false}}`,
			expected: map[string]any{
				"path":   "flights",
				"ids":    []any{1, 2.5},
				"active": true,
				"since":  nil,
				"opts":   map[string]any{"x": false},
			},
		},
		{name: "list at top level", expr: "[1, 'a']", expected: []any{1, "a"}},
		{name: "numeric key", expr: "{1: 'one'}", expected: map[string]any{"1": "one"}},
		{name: "statement", expr: "import os", wantErr: true},
		{name: "bare identifier value", expr: "{'cmd': os}", wantErr: true},
		{name: "call", expr: "{'cmd': __import__('os')}", wantErr: true},
		{name: "block mapping", expr: "limit: 10", wantErr: true},
		{name: "anchor", expr: "{'a': &x 1, 'b': *x}", wantErr: true},
		{name: "tag", expr: "{'a': !!str 1}", wantErr: true},
		{name: "unbalanced", expr: "{'limit': 10", wantErr: true},
		{name: "second document", expr: "{'a': 1}\n---\nimport os", wantErr: true},
		{name: "after document end", expr: "{'a': 1}\n...\nimport os", wantErr: true},
		{name: "explicit document start", expr: "--- {'a': 1}", expected: map[string]any{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, models.ErrInvalidKwargs)
				assert.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseMapping(t *testing.T) {
	t.Parallel()

	m, err := ParseMapping("{'limit': 10}")
	require.NoError(t, err)
	assert.Equal(t, 10, m["limit"])

	_, err = ParseMapping("[1, 2]")
	require.Error(t, err)
	assert.True(t, IsNotMapping(err))
	assert.NotErrorIs(t, err, models.ErrValidation)

	_, err = ParseMapping("import os")
	require.Error(t, err)
	assert.False(t, IsNotMapping(err))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate("{'limit': 10}"))
	assert.NoError(t, Validate("42"))
	assert.ErrorIs(t, Validate("import os"), models.ErrInvalidKwargs)
}
