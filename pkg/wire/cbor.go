// Package wire implements the two canonical encodings agora signs over.
//
// Free-form mutating payloads (proposals, votes, comments, journal entries)
// are signed over canonical JSON (see canonjson.go). Fixed protocol
// structures such as the key-rotation delegation triple are signed over
// canonical CBOR per RFC 8949 Section 4.2.1. Both encodings are wire
// contracts: clients must produce byte-identical output, so neither may
// depend on incidental serializer behavior.
package wire

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Sort = cbor.SortCanonical

	var err error
	cborEnc, err = opts.EncMode()
	if err != nil {
		panic("wire: canonical CBOR encode mode: " + err.Error())
	}

	cborDec, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic("wire: canonical CBOR decode mode: " + err.Error())
	}
}

// MarshalCBOR encodes v as canonical (deterministic) CBOR.
func MarshalCBOR(v interface{}) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// UnmarshalCBOR decodes canonical CBOR, rejecting duplicate map keys.
func UnmarshalCBOR(data []byte, v interface{}) error {
	return cborDec.Unmarshal(data, v)
}
