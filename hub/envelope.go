package hub

// MaxPayloadBytes bounds an Envelope's inline payload. ShmTopic slots are
// fixed-size (spec §4.2: "Slots are fixed-size element_size and packed
// without per-slot metadata"), so a Hub message's encoded form must fit
// inline; larger payloads are a SerializationFailed error rather than a
// spilled/out-of-band allocation, keeping the ring genuinely zero-copy.
const MaxPayloadBytes = 4096

// Envelope is the fixed-size slot type stored in the underlying
// shmtopic.Topic. It carries the metadata envelope from spec §4.3
// ({msg_type_tag, unix_timestamp_seconds_f64}) alongside the encoded
// payload and its length.
type Envelope struct {
	MsgTypeTag   uint32
	TimestampSec float64
	Len          uint32
	Payload      [MaxPayloadBytes]byte
}
