package value

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFromGo_ClosedKinds(t *testing.T) {
	cases := []struct {
		name string
		in   any
		kind Kind
	}{
		{"null", nil, KindNull},
		{"bool", true, KindBool},
		{"int", 42, KindNumber},
		{"float", 1.5, KindNumber},
		{"string", "hello", KindString},
		{"list", []any{1, "two"}, KindList},
		{"map", map[string]any{"a": 1}, KindMap},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := FromGo(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, d.Kind())
		})
	}
}

func TestFromGo_RejectsUnsupportedTypes(t *testing.T) {
	_, err := FromGo(struct{ X int }{1})
	require.Error(t, err)
}

func TestZeroValueIsNull(t *testing.T) {
	var d Dynamic
	assert.True(t, d.IsNull())
	assert.Equal(t, KindNull, d.Kind())
	assert.Nil(t, d.ToGo())
}

func TestToGo_RoundTrip(t *testing.T) {
	in := map[string]any{
		"distances": []any{int64(30), int64(60), int64(90)},
		"ratio":     0.5,
		"label":     "buffer",
		"enabled":   true,
		"nothing":   nil,
		"nested":    map[string]any{"depth": int64(2)},
	}
	d := MustFromGo(in)
	out := d.ToGo()
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	d := MustFromGo(map[string]any{
		"a": []any{int64(1), int64(2), int64(3)},
		"b": map[string]any{"c": "x", "d": nil},
	})

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var back Dynamic
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, d.Equal(back), "expected %v, got %v", d.ToGo(), back.ToGo())
}

func TestYAMLRoundTrip(t *testing.T) {
	src := `
choices:
  buffer_distance: 30
  zones: [a, b, c]
  weights:
    near: 0.7
    far: 0.3
`
	var doc struct {
		Choices map[string]Dynamic `yaml:"choices"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))

	assert.True(t, doc.Choices["buffer_distance"].Equal(Int(30)))
	assert.Equal(t, KindList, doc.Choices["zones"].Kind())
	assert.Equal(t, []string{"far", "near"}, doc.Choices["weights"].Keys())

	raw, err := yaml.Marshal(doc)
	require.NoError(t, err)

	var back struct {
		Choices map[string]Dynamic `yaml:"choices"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &back))
	for k, v := range doc.Choices {
		assert.True(t, v.Equal(back.Choices[k]), "key %q changed across round trip", k)
	}
}

func TestEqual_NumbersCompareByValue(t *testing.T) {
	assert.True(t, Int(5).Equal(Float(5)))
	assert.False(t, Int(5).Equal(Int(6)))
}

func TestIndex_MissingKeyIsNull(t *testing.T) {
	d := MustFromGo(map[string]any{"present": 1})
	assert.True(t, d.Index("absent").IsNull())
	assert.False(t, d.Index("present").IsNull())
}
