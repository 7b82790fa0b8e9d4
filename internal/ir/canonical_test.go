package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"bool true", IRBool(true), "true"},
		{"bool false", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array of ints", IRArray{IRInt(1), IRInt(2), IRInt(3)}, "[1,2,3]"},
		{"simple object", IRObject{"a": IRInt(1)}, `{"a":1}`},
		{"go string", "hello", `"hello"`},
		{"go int64", int64(7), "7"},
		{"go int", 7, "7"},
		{"go string slice", []string{"b", "a"}, `["b","a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra": IRInt(1),
		"alpha": IRInt(2),
		"beta":  IRObject{"b": IRInt(1), "a": IRInt(2)},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000: UTF-16 order differs from UTF-8
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<script>a & b</script>"))
	require.NoError(t, err)
	assert.Equal(t, `"<script>a & b</script>"`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "null"},
		{"float64", 1.5, "floats"},
		{"float in map", map[string]any{"x": 1.5}, "floats"},
		{"unsupported", struct{}{}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	r1, err := MarshalCanonical(IRObject{composed: IRString(composed)})
	require.NoError(t, err)
	r2, err := MarshalCanonical(IRObject{decomposed: IRString(decomposed)})
	require.NoError(t, err)

	assert.Equal(t, r1, r2, "NFC normalization should make keys and values equal")
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `seq \u2028`, `"seq \\u2028"`},
		{"mixed", "lit \\u2029 and \u2029", "\"lit \\\\u2029 and \u2029\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRecordObject(t *testing.T) {
	rec := Record{Key: "p1", Name: "Ada", Identity: "id-1", Severity: 5, Seq: 3}

	result, err := MarshalCanonical(rec.ToIRObject())
	require.NoError(t, err)
	assert.Equal(t, `{"key":"p1","name":"Ada","seq":3,"severity":5}`, string(result))
}
