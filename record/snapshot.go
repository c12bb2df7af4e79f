// Package record implements the deterministic record/replay facility
// (spec §4.5): NodeRecorder captures per-tick input/output snapshots,
// NodeReplayer reads them back with seek/advance semantics, and
// SchedulerRecording indexes per-node recordings alongside the tick
// execution order the scheduler actually produced.
//
// Recordings are serialized with encoding/gob, length-prefixed the way
// paultag's diskring frames each chunk with its own size — except here
// the frame is written once to a plain file rather than cycled through
// a fixed-size ring, since a finished recording must remain complete
// and immutable (spec §4.5: "finalized file is immutable").
package record

import "time"

// TickSnapshot is one recorded tick (spec §3).
type TickSnapshot struct {
	Tick        uint64
	TimestampUs int64
	Inputs      map[string][]byte
	Outputs     map[string][]byte
	State       []byte
	DurationNs  int64
}

// NodeRecording is the full capture for one node over a session (spec §3).
type NodeRecording struct {
	NodeID      string
	NodeName    string
	SessionName string
	FirstTick   uint64
	LastTick    uint64
	Snapshots   []TickSnapshot
}

// clone returns a value with its own backing slices/maps, independent of
// s. Recorder.EndTick uses this so the snapshot it appends to the
// recording never aliases whatever current points at next — current is
// reassigned fresh on every BeginTick, but a defensive copy at the
// append boundary keeps that invariant from being load-bearing.
func (s TickSnapshot) clone() TickSnapshot {
	out := TickSnapshot{
		Tick:        s.Tick,
		TimestampUs: s.TimestampUs,
		DurationNs:  s.DurationNs,
	}
	if s.Inputs != nil {
		out.Inputs = make(map[string][]byte, len(s.Inputs))
		for k, v := range s.Inputs {
			out.Inputs[k] = append([]byte(nil), v...)
		}
	}
	if s.Outputs != nil {
		out.Outputs = make(map[string][]byte, len(s.Outputs))
		for k, v := range s.Outputs {
			out.Outputs[k] = append([]byte(nil), v...)
		}
	}
	if s.State != nil {
		out.State = append([]byte(nil), s.State...)
	}
	return out
}

func nowMicros(clock func() time.Time) int64 {
	return clock().UnixMicro()
}

// estimatedSize approximates the gob-encoded size of s on disk: the sum
// of every payload and map-key byte plus one fixed 32-byte overhead for
// the numeric fields and map/slice headers. It's an estimate, not an exact count —
// good enough to drive Recorder.ShouldStop (spec §4.5).
func (s TickSnapshot) estimatedSize() uint64 {
	const fixedOverhead = 32

	total := uint64(fixedOverhead)
	for k, v := range s.Inputs {
		total += uint64(len(k)) + uint64(len(v))
	}
	for k, v := range s.Outputs {
		total += uint64(len(k)) + uint64(len(v))
	}
	total += uint64(len(s.State))
	return total
}
