package record

import (
	"fmt"
	"sort"

	"github.com/horus-robotics/horus-core/horuserr"
)

// Replayer reads an immutable recording back with seek/advance semantics
// (spec §4.5 NodeReplayer). Snapshots are immutable during replay.
type Replayer struct {
	recording NodeRecording
	index     int // position into recording.Snapshots, or len(Snapshots) when finished
}

// NewReplayer wraps an existing recording for replay.
func NewReplayer(rec NodeRecording) *Replayer {
	return &Replayer{recording: rec}
}

// LoadReplayer reads a recording from path and wraps it for replay.
func LoadReplayer(path string) (*Replayer, error) {
	rec, err := ReadRecording(path)
	if err != nil {
		return nil, fmt.Errorf("load replayer: %w", err)
	}
	return NewReplayer(rec), nil
}

// CurrentTick returns the tick number of the current snapshot.
func (p *Replayer) CurrentTick() (uint64, bool) {
	if p.IsFinished() {
		return 0, false
	}
	return p.recording.Snapshots[p.index].Tick, true
}

// Advance moves to the next snapshot. It returns false once the
// replayer has advanced past the last snapshot (spec §4.5 scenario S5).
func (p *Replayer) Advance() bool {
	if p.index >= len(p.recording.Snapshots) {
		return false
	}
	p.index++
	return p.index < len(p.recording.Snapshots)
}

// Seek positions at the smallest recorded tick >= t (spec §4.5).
func (p *Replayer) Seek(t uint64) error {
	snaps := p.recording.Snapshots
	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].Tick >= t })
	if i >= len(snaps) {
		return fmt.Errorf("seek tick %d: %w", t, horuserr.ErrNotFound)
	}
	p.index = i
	return nil
}

// Reset returns the replayer to its first snapshot.
func (p *Replayer) Reset() {
	p.index = 0
}

// IsFinished reports whether replay has moved past the last snapshot.
func (p *Replayer) IsFinished() bool {
	return p.index >= len(p.recording.Snapshots)
}

// CurrentOutput returns the payload recorded for topic on the current
// snapshot's outputs.
func (p *Replayer) CurrentOutput(topic string) ([]byte, bool) {
	if p.IsFinished() {
		return nil, false
	}
	v, ok := p.recording.Snapshots[p.index].Outputs[topic]
	return v, ok
}

// CurrentInput returns the payload recorded for topic on the current
// snapshot's inputs.
func (p *Replayer) CurrentInput(topic string) ([]byte, bool) {
	if p.IsFinished() {
		return nil, false
	}
	v, ok := p.recording.Snapshots[p.index].Inputs[topic]
	return v, ok
}

// CurrentState returns the state blob recorded on the current snapshot.
func (p *Replayer) CurrentState() ([]byte, bool) {
	if p.IsFinished() {
		return nil, false
	}
	s := p.recording.Snapshots[p.index].State
	return s, s != nil
}
