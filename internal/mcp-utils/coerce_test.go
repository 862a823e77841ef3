package mcputils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for CoerceBindArguments:
// - Values that already have the right type bind unchanged
// - JSON strings become slices, maps, booleans and numbers
// - Plain strings split on commas for slice fields
// - Strings that only look like JSON pass through
// - Durations parse from strings
// - Missing fields keep their zero value
// - Strings that cannot become numbers are errors

type mockArgumentGetter struct {
	args map[string]any
}

func (m *mockArgumentGetter) GetArguments() map[string]any {
	return m.args
}

type splitArgs struct {
	Origin           string            `json:"origin"`
	Paths            []string          `json:"paths,omitempty"`
	MinFunctionLines int               `json:"min_function_lines,omitempty"`
	FirstBinding     bool              `json:"first_binding,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
	Timeout          time.Duration     `json:"timeout,omitempty"`
}

func bind(t *testing.T, args map[string]any) (splitArgs, error) {
	t.Helper()
	var out splitArgs
	err := CoerceBindArguments(&mockArgumentGetter{args: args}, &out)
	return out, err
}

func TestCoerceBindArguments(t *testing.T) {
	t.Parallel()

	t.Run("proper types", func(t *testing.T) {
		t.Parallel()
		out, err := bind(t, map[string]any{
			"origin":             "src/form.tsx",
			"paths":              []string{"a.ts", "b.ts"},
			"min_function_lines": 30,
			"first_binding":      true,
		})
		require.NoError(t, err)
		assert.Equal(t, splitArgs{
			Origin:           "src/form.tsx",
			Paths:            []string{"a.ts", "b.ts"},
			MinFunctionLines: 30,
			FirstBinding:     true,
		}, out)
	})

	t.Run("everything as strings", func(t *testing.T) {
		t.Parallel()
		out, err := bind(t, map[string]any{
			"origin":             "src/form.tsx",
			"paths":              ` ["a.ts", "b, c.ts"] `,
			"min_function_lines": "25",
			"first_binding":      "true",
			"labels":             `{"owner": "web"}`,
			"timeout":            "1500ms",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.ts", "b, c.ts"}, out.Paths)
		assert.Equal(t, 25, out.MinFunctionLines)
		assert.True(t, out.FirstBinding)
		assert.Equal(t, map[string]string{"owner": "web"}, out.Labels)
		assert.Equal(t, 1500*time.Millisecond, out.Timeout)
	})

	t.Run("comma separated fallback", func(t *testing.T) {
		t.Parallel()
		out, err := bind(t, map[string]any{"paths": "a.ts,b.ts"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.ts", "b.ts"}, out.Paths)
	})

	t.Run("broken json passes through", func(t *testing.T) {
		t.Parallel()
		out, err := bind(t, map[string]any{"paths": "[a.ts"})
		require.NoError(t, err)
		assert.Equal(t, []string{"[a.ts"}, out.Paths)
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()
		out, err := bind(t, map[string]any{"origin": "x.ts"})
		require.NoError(t, err)
		assert.Equal(t, splitArgs{Origin: "x.ts"}, out)
	})

	t.Run("not a number", func(t *testing.T) {
		t.Parallel()
		_, err := bind(t, map[string]any{"min_function_lines": "lots"})
		assert.Error(t, err)
	})
}
