package record

import (
	"fmt"
	"time"

	"github.com/horus-robotics/horus-core/horuserr"
)

// Recorder captures per-tick input/output snapshots for one node (spec
// §4.5 NodeRecorder). It holds a partially built NodeRecording and an
// open snapshot, or none, between BeginTick/EndTick.
type Recorder struct {
	Interval uint64 // record only when tick % Interval == 0; 0 and 1 both mean "every tick"
	Clock    func() time.Time

	// MaxBytes bounds the estimated on-disk size of the recording (spec
	// §4.5 NodeRecorder.should_stop). 0 means unbounded.
	MaxBytes uint64

	recording      NodeRecording
	current        *TickSnapshot
	started        bool
	estimatedBytes uint64
}

// NewRecorder creates a Recorder for one node within a session.
func NewRecorder(nodeID, nodeName, sessionName string, interval uint64) *Recorder {
	return &Recorder{
		Interval: interval,
		Clock:    time.Now,
		recording: NodeRecording{
			NodeID:      nodeID,
			NodeName:    nodeName,
			SessionName: sessionName,
		},
	}
}

// BeginTick opens a new snapshot for tick, honoring Interval (spec §4.5:
// "record only when tick % interval == 0"). It is a no-op (no snapshot
// opened) on skipped ticks.
func (r *Recorder) BeginTick(tick uint64) {
	interval := r.Interval
	if interval == 0 {
		interval = 1
	}
	if tick%interval != 0 {
		r.current = nil
		return
	}
	r.current = &TickSnapshot{
		Tick:        tick,
		TimestampUs: nowMicros(r.Clock),
		Inputs:      make(map[string][]byte),
		Outputs:     make(map[string][]byte),
	}
}

// RecordInput attaches an input payload to the current tick. A no-op
// when no tick is currently open (spec §4.5).
func (r *Recorder) RecordInput(topic string, payload []byte) {
	if r.current == nil {
		return
	}
	r.current.Inputs[topic] = append([]byte(nil), payload...)
}

// RecordOutput attaches an output payload to the current tick.
func (r *Recorder) RecordOutput(topic string, payload []byte) {
	if r.current == nil {
		return
	}
	r.current.Outputs[topic] = append([]byte(nil), payload...)
}

// RecordState attaches a state blob to the current tick.
func (r *Recorder) RecordState(state []byte) {
	if r.current == nil {
		return
	}
	r.current.State = append([]byte(nil), state...)
}

// EndTick closes the current snapshot, attaches durationNs, and appends
// it to the recording (spec §4.5). It is a no-op when no tick is open.
func (r *Recorder) EndTick(durationNs int64) {
	if r.current == nil {
		return
	}
	r.current.DurationNs = durationNs

	if !r.started {
		r.recording.FirstTick = r.current.Tick
		r.started = true
	}
	r.recording.LastTick = r.current.Tick
	snap := r.current.clone()
	r.recording.Snapshots = append(r.recording.Snapshots, snap)
	r.estimatedBytes += snap.estimatedSize()
	r.current = nil
}

// ShouldStop reports whether the recording's estimated on-disk size has
// reached MaxBytes (spec §4.5 NodeRecorder.should_stop). Always false
// when MaxBytes is unset.
func (r *Recorder) ShouldStop() bool {
	return r.MaxBytes > 0 && r.estimatedBytes >= r.MaxBytes
}

// EstimatedBytes returns the running estimate of the recording's
// on-disk size, the same value ShouldStop compares against MaxBytes.
func (r *Recorder) EstimatedBytes() uint64 {
	return r.estimatedBytes
}

// Finish returns the completed recording. The Recorder must not be used
// for further ticks afterward (spec §4.5: "finalized file is immutable").
func (r *Recorder) Finish() NodeRecording {
	return r.recording
}

// Save finalizes the recording and writes it to path (spec §6: under
// $HOME/.horus/recordings/<session>/<node>@<id>.<ext>).
func (r *Recorder) Save(path string) error {
	if err := WriteRecording(path, r.Finish()); err != nil {
		return fmt.Errorf("save recording: %w: %v", horuserr.ErrIO, err)
	}
	return nil
}
