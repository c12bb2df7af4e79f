package record

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/horus-robotics/horus-core/horuserr"
)

// WriteRecording serializes rec with gob and writes it to path as one
// length-prefixed frame, in the spirit of diskring's "encode the length
// alongside the data" framing (paultag-go-diskring write.go), except
// written once to a plain file instead of cycled through a ring.
func WriteRecording(path string, rec NodeRecording) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(rec); err != nil {
		return fmt.Errorf("encode recording: %w: %v", horuserr.ErrSerializationFailed, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w: %v", path, horuserr.ErrIO, err)
	}
	defer f.Close()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(body.Len()))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write length frame %s: %w: %v", path, horuserr.ErrIO, err)
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		return fmt.Errorf("write recording body %s: %w: %v", path, horuserr.ErrIO, err)
	}
	return nil
}

// ReadRecording reads a recording written by WriteRecording.
func ReadRecording(path string) (NodeRecording, error) {
	f, err := os.Open(path)
	if err != nil {
		return NodeRecording{}, fmt.Errorf("open %s: %w: %v", path, horuserr.ErrIO, err)
	}
	defer f.Close()

	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return NodeRecording{}, fmt.Errorf("read length frame %s: %w: %v", path, horuserr.ErrIO, err)
	}
	length := binary.LittleEndian.Uint64(lenBuf[:])

	body := make([]byte, length)
	if _, err := io.ReadFull(f, body); err != nil {
		return NodeRecording{}, fmt.Errorf("read recording body %s: %w: %v", path, horuserr.ErrIO, err)
	}

	var rec NodeRecording
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&rec); err != nil {
		return NodeRecording{}, fmt.Errorf("decode recording %s: %w: %v", path, horuserr.ErrSerializationFailed, err)
	}
	return rec, nil
}
