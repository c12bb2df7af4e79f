package record

import "bytes"

// DiffKind classifies one entry from DiffRecordings (spec §4.5).
type DiffKind int

const (
	OutputDifference DiffKind = iota
	MissingOutput
	MissingTick
)

func (k DiffKind) String() string {
	switch k {
	case OutputDifference:
		return "OutputDifference"
	case MissingOutput:
		return "MissingOutput"
	case MissingTick:
		return "MissingTick"
	default:
		return "Unknown"
	}
}

// Which identifies which of the two recordings a Diff's observation
// belongs to.
type Which int

const (
	Left Which = iota
	Right
)

func (w Which) String() string {
	if w == Left {
		return "left"
	}
	return "right"
}

// Diff is one observed discrepancy between two recordings.
type Diff struct {
	Kind  DiffKind
	Tick  uint64
	Topic string  // empty for MissingTick
	Which Which   // which side is missing the tick/output (MissingTick/MissingOutput)
	Sizes [2]int  // len(left), len(right) payloads, for OutputDifference
}

// DiffRecordings compares two NodeRecordings over their overlapping tick
// range (spec §4.5 diff_recordings), a pure function with no side
// effects: it never mutates either recording.
func DiffRecordings(left, right NodeRecording) []Diff {
	byTick := func(rec NodeRecording) map[uint64]TickSnapshot {
		m := make(map[uint64]TickSnapshot, len(rec.Snapshots))
		for _, s := range rec.Snapshots {
			m[s.Tick] = s
		}
		return m
	}
	leftTicks := byTick(left)
	rightTicks := byTick(right)

	lo := left.FirstTick
	if right.FirstTick > lo {
		lo = right.FirstTick
	}
	hi := left.LastTick
	if right.LastTick < hi {
		hi = right.LastTick
	}

	var diffs []Diff
	for t := lo; t <= hi; t++ {
		ls, lok := leftTicks[t]
		rs, rok := rightTicks[t]
		switch {
		case !lok && !rok:
			continue
		case !lok:
			diffs = append(diffs, Diff{Kind: MissingTick, Tick: t, Which: Left})
			continue
		case !rok:
			diffs = append(diffs, Diff{Kind: MissingTick, Tick: t, Which: Right})
			continue
		}

		diffs = append(diffs, diffOutputs(t, ls, rs)...)
	}
	return diffs
}

func diffOutputs(tick uint64, left, right TickSnapshot) []Diff {
	var diffs []Diff
	seen := make(map[string]bool, len(left.Outputs)+len(right.Outputs))
	for topic := range left.Outputs {
		seen[topic] = true
	}
	for topic := range right.Outputs {
		seen[topic] = true
	}

	for topic := range seen {
		lv, lok := left.Outputs[topic]
		rv, rok := right.Outputs[topic]
		switch {
		case lok && !rok:
			diffs = append(diffs, Diff{Kind: MissingOutput, Tick: tick, Topic: topic, Which: Right})
		case !lok && rok:
			diffs = append(diffs, Diff{Kind: MissingOutput, Tick: tick, Topic: topic, Which: Left})
		case !bytes.Equal(lv, rv):
			diffs = append(diffs, Diff{
				Kind:  OutputDifference,
				Tick:  tick,
				Topic: topic,
				Sizes: [2]int{len(lv), len(rv)},
			})
		}
	}
	return diffs
}
