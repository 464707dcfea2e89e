package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := DecodeObject([]byte(`{"b":1,"a":2,"c":{"z":true,"y":null}}`))
	require.NoError(t, err)
	b, err := DecodeObject([]byte(`{"c":{"y":null,"z":true},"a":2,"b":1}`))
	require.NoError(t, err)

	ca, err := MarshalCanonicalJSON(a)
	require.NoError(t, err)
	cb, err := MarshalCanonicalJSON(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":null,"z":true}}`, string(ca))
}

func TestCanonicalJSONPreservesNumberTokens(t *testing.T) {
	// 1.50 and 1.5 are the same value but different tokens; the token the
	// client sent is the token that gets signed, so it must survive.
	m, err := DecodeObject([]byte(`{"n":1.50,"big":9007199254740993}`))
	require.NoError(t, err)

	out, err := MarshalCanonicalJSON(m)
	require.NoError(t, err)
	assert.Equal(t, `{"big":9007199254740993,"n":1.50}`, string(out))
}

func TestCanonicalJSONEscapesStrings(t *testing.T) {
	out, err := MarshalCanonicalJSON(map[string]interface{}{
		"s": "line\nbreak \"quoted\"",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"line\nbreak \"quoted\""}`, string(out))
}

func TestCanonicalJSONArraysKeepOrder(t *testing.T) {
	m, err := DecodeObject([]byte(`{"tags":["b","a",3]}`))
	require.NoError(t, err)

	out, err := MarshalCanonicalJSON(m)
	require.NoError(t, err)
	assert.Equal(t, `{"tags":["b","a",3]}`, string(out))
}

func TestDecodeObjectRejectsTrailingData(t *testing.T) {
	_, err := DecodeObject([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}

func TestCanonicalJSONRejectsUnknownTypes(t *testing.T) {
	_, err := MarshalCanonicalJSON(map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestCanonicalCBORDeterministic(t *testing.T) {
	type triple struct {
		B string `cbor:"b"`
		A string `cbor:"a"`
	}
	x, err := MarshalCBOR(triple{A: "1", B: "2"})
	require.NoError(t, err)
	y, err := MarshalCBOR(triple{B: "2", A: "1"})
	require.NoError(t, err)
	assert.Equal(t, x, y)
}
