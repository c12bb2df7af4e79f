// Package hub implements Hub[T] (spec §4.3): the user-facing publish/
// subscribe façade layering session namespacing, serialization, metadata,
// metrics, connection state, and discovery emission over a shmtopic ring.
package hub

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/horus-robotics/horus-core/horuserr"
)

// Codec tags recorded in the envelope so a receiver can dispatch (spec
// §4.3 "A selected strategy is recorded in per-message metadata").
const (
	CodecRaw    uint8 = 1
	CodecBinary uint8 = 2
	CodecJSON   uint8 = 3 // stands in for spec's "pickled-object fallback for dynamic-language bindings"
)

// Codec encodes/decodes messages of type T to/from the byte payload
// carried in an Envelope slot.
type Codec[T any] interface {
	Tag() uint8
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// RawCodec passes []byte payloads through unchanged. Use Hub[[]byte] with
// this codec for heterogeneous/dynamic payloads (spec §9: "a polymorphic
// Hub parameterized by a typed payload T and a companion Hub<bytes+
// metadata_tag> for heterogeneous cases").
type RawCodec struct{}

func (RawCodec) Tag() uint8 { return CodecRaw }
func (RawCodec) Encode(v []byte) ([]byte, error) { return v, nil }
func (RawCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// BinaryCodec is the "compact binary encoding" strategy from spec §4.3,
// implemented with encoding/gob.
type BinaryCodec[T any] struct{}

func (BinaryCodec[T]) Tag() uint8 { return CodecBinary }

func (BinaryCodec[T]) Encode(v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w: %v", horuserr.ErrSerializationFailed, err)
	}
	return buf.Bytes(), nil
}

func (BinaryCodec[T]) Decode(data []byte) (T, error) {
	var out T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return out, fmt.Errorf("gob decode: %w: %v", horuserr.ErrDeserializeFailed, err)
	}
	return out, nil
}

// JSONCodec is the dynamic-language-friendly fallback strategy.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Tag() uint8 { return CodecJSON }

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w: %v", horuserr.ErrSerializationFailed, err)
	}
	return b, nil
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("json decode: %w: %v", horuserr.ErrDeserializeFailed, err)
	}
	return out, nil
}
