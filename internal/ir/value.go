package ir

import (
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the value types that may appear in a
// trace or audit payload. Only IRString, IRInt, IRBool, IRArray and IRObject
// implement it. There is no float variant: averages and latencies leave the
// core as integers or preformatted strings so hashes stay deterministic.
type IRValue interface {
	irValue()
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// Strings converts a string slice into an IRArray of IRString.
func Strings(ss []string) IRArray {
	arr := make(IRArray, len(ss))
	for i, s := range ss {
		arr[i] = IRString(s)
	}
	return arr
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's native string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
