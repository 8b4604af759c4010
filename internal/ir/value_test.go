package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalValue(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Value
	}{
		{"string", `"hello"`, String("hello")},
		{"true", `true`, Bool(true)},
		{"false", `false`, Bool(false)},
		{"null is Null not nil", `null`, Null{}},
		{"integer", `42`, Int(42)},
		{"negative integer", `-7`, Int(-7)},
		{"large integer stays exact", `9007199254740993`, Int(9007199254740993)},
		{"fractional number", `3.5`, Float(3.5)},
		{"exponent number", `1e3`, Float(1000)},
		{"sequence", `[1, "two", null]`, Sequence{Int(1), String("two"), Null{}}},
		{"map", `{"a": 1, "b": [true]}`, Map{"a": Int(1), "b": Sequence{Bool(true)}}},
		{"nested", `{"k": {"inner": [1.5]}}`, Map{"k": Map{"inner": Sequence{Float(1.5)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalValue([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalValueErrors(t *testing.T) {
	for _, data := range []string{"", "nope", "nul", "nullx", `{"a":`} {
		_, err := UnmarshalValue([]byte(data))
		assert.Error(t, err, "input %q", data)
	}
}

func TestMarshalValueRoundTrip(t *testing.T) {
	original := Map{
		"name":   String("widget"),
		"count":  Int(3),
		"weight": Float(2.5),
		"tags":   Sequence{String("a"), String("b")},
		"extra":  Null{},
	}

	data, err := MarshalValue(original)
	require.NoError(t, err)

	decoded, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.True(t, Equal(original, decoded))
}

func TestMapMarshalSortsKeys(t *testing.T) {
	data, err := MarshalValue(Map{"b": Int(2), "a": Int(1), "c": Int(3)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(data))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// UTF-16 code unit order: an astral-plane character (surrogate pair
	// starting 0xD83D) sorts before U+FF21 even though its code point is
	// higher. Byte-wise UTF-8 ordering gets this wrong.
	m := Map{
		"Ａ": Int(1), // FULLWIDTH LATIN CAPITAL A
		"\U0001F600": Int(2),
		"a":      Int(3),
	}
	assert.Equal(t, []string{"a", "\U0001F600", "Ａ"}, m.SortedKeys())
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"string", "x", String("x")},
		{"int", 5, Int(5)},
		{"int64", int64(6), Int(6)},
		{"integral float collapses to Int", float64(7), Int(7)},
		{"fractional float", 7.5, Float(7.5)},
		{"value passes through", Int(9), Int(9)},
		{"slice", []any{1, "a"}, Sequence{Int(1), String("a")}},
		{"map", map[string]any{"k": false}, Map{"k": Bool(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FromGo(struct{}{})
	assert.Error(t, err)
}

func TestToGo(t *testing.T) {
	assert.Nil(t, ToGo(nil))
	assert.Nil(t, ToGo(Null{}))
	assert.Equal(t, int64(4), ToGo(Int(4)))
	assert.Equal(t, 4.5, ToGo(Float(4.5)))
	assert.Equal(t, "s", ToGo(String("s")))
	assert.Equal(t, []any{true, int64(1)}, ToGo(Sequence{Bool(true), Int(1)}))
	assert.Equal(t, map[string]any{"k": "v"}, ToGo(Map{"k": String("v")}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(Null{}, Null{}))
	assert.False(t, Equal(Null{}, nil))
	assert.True(t, Equal(Int(1), Int(1)))
	// Int and Float are distinct types even at the same numeric value.
	assert.False(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(
		Sequence{Int(1), Map{"a": String("x")}},
		Sequence{Int(1), Map{"a": String("x")}},
	))
	assert.False(t, Equal(
		Map{"a": Int(1)},
		Map{"a": Int(1), "b": Int(2)},
	))
}
