package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorWindowCapacity bounds the rolling error/warning history (spec §4.4).
const ErrorWindowCapacity = 100

// LogRecord is one entry in the rolling error/warning windows.
type LogRecord struct {
	Time    time.Time
	Message string
}

// Metrics is NodeInfo's per-tick bookkeeping (spec §4.4).
type Metrics struct {
	TotalTicks      uint64
	SuccessfulTicks uint64
	FailedTicks     uint64

	MinTickDurationNs uint64 // 0 means unset
	MaxTickDurationNs uint64
	AvgTickDurationMs float64

	LastTickTime time.Time
}

// NodeConfig carries the tunables spec §4.4/§5 names explicitly.
type NodeConfig struct {
	Priority            uint32
	MaxTickDurationMs   uint32 // 0 disables the budget check
	RestartOnFailure    bool
	MaxRestartAttempts  uint32
	RestartDelayMs      uint32
	HeartbeatIntervalMs uint32 // spec §9: implementers must bound this explicitly
}

// DefaultNodeConfig matches spec §9's "max once per 100ms" heartbeat
// guidance.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		HeartbeatIntervalMs: 100,
	}
}

// NodeInfo is the per-node runtime context (spec §3/§4.4). It is created
// during node construction, mutated only by the owning node's own
// goroutine (ticks are guaranteed single-threaded per node, spec §5), and
// destroyed on shutdown.
type NodeInfo struct {
	Name       string
	NodeID     string
	InstanceID string

	Config   NodeConfig
	Priority uint32

	createdAt time.Time

	metricsLock sync.Mutex // guards Metrics + state during concurrent instrumentation callbacks
	state       State
	prevState   State
	stateChange time.Time
	metrics     Metrics

	tickStart time.Time
	ticking   bool

	errorsMu sync.Mutex
	errors   []LogRecord
	warnings []LogRecord
	errCount uint32
	warnCount uint32

	topicCounters map[string]uint64
	countersMu    sync.Mutex

	logger *Logger
}

// New constructs a NodeInfo in state Uninitialized.
func New(name string, cfg NodeConfig) *NodeInfo {
	if cfg.HeartbeatIntervalMs == 0 {
		cfg.HeartbeatIntervalMs = 100
	}
	n := &NodeInfo{
		Name:          name,
		NodeID:        name,
		InstanceID:    uuid.NewString(),
		Config:        cfg,
		Priority:      cfg.Priority,
		createdAt:     time.Now(),
		state:         Uninitialized,
		prevState:     Uninitialized,
		stateChange:   time.Now(),
		topicCounters: make(map[string]uint64),
	}
	n.logger = NewLogger(name)
	return n
}

// State returns the current lifecycle state.
func (n *NodeInfo) State() State {
	n.metricsLock.Lock()
	defer n.metricsLock.Unlock()
	return n.state
}

// PreviousState returns the state the node transitioned from most recently.
func (n *NodeInfo) PreviousState() State {
	n.metricsLock.Lock()
	defer n.metricsLock.Unlock()
	return n.prevState
}

// SetState performs a state transition, recording previous_state and
// state_change_time on every call (spec §4.4). Error/Crashed transitions
// append to the rolling error window.
func (n *NodeInfo) SetState(to State) error {
	n.metricsLock.Lock()
	from := n.state
	if !CanTransition(from, to) {
		n.metricsLock.Unlock()
		return &ErrIllegalTransition{From: from, To: to}
	}
	n.prevState = from
	n.state = to
	n.stateChange = time.Now()
	n.metricsLock.Unlock()

	if to == Error || to == Crashed {
		n.pushError(formatStateMsg(from, to))
	}
	return nil
}

func formatStateMsg(from, to State) string {
	return from.String() + " -> " + to.String()
}

// Uptime returns the duration since NodeInfo construction.
func (n *NodeInfo) Uptime() time.Duration { return time.Since(n.createdAt) }

// StartTick records a tick's start time. If the node is still
// Uninitialized it performs an implicit initialize (spec §4.4).
func (n *NodeInfo) StartTick() error {
	n.metricsLock.Lock()
	if n.state == Uninitialized {
		n.metricsLock.Unlock()
		if err := n.SetState(Initializing); err != nil {
			return err
		}
		if err := n.SetState(Running); err != nil {
			return err
		}
		n.metricsLock.Lock()
	}
	n.tickStart = time.Now()
	n.ticking = true
	n.metricsLock.Unlock()
	return nil
}

// RecordTick computes the tick's duration and updates total/successful
// tick counters, min/max/avg duration, and uptime (spec §4.4). Average is
// an exact running mean: avg_new = (avg_old*(n-1) + d) / n. A tick longer
// than Config.MaxTickDurationMs is logged as a warning.
func (n *NodeInfo) RecordTick() time.Duration {
	n.metricsLock.Lock()
	defer n.metricsLock.Unlock()

	d := time.Since(n.tickStart)
	n.ticking = false
	dNs := uint64(d.Nanoseconds())

	n.metrics.TotalTicks++
	n.metrics.SuccessfulTicks++
	n.metrics.LastTickTime = time.Now()

	if n.metrics.MinTickDurationNs == 0 || dNs < n.metrics.MinTickDurationNs {
		n.metrics.MinTickDurationNs = dNs
	}
	if dNs > n.metrics.MaxTickDurationNs {
		n.metrics.MaxTickDurationNs = dNs
	}

	dMs := float64(d) / float64(time.Millisecond)
	count := float64(n.metrics.SuccessfulTicks)
	n.metrics.AvgTickDurationMs = (n.metrics.AvgTickDurationMs*(count-1) + dMs) / count

	if budget := n.Config.MaxTickDurationMs; budget > 0 && d > time.Duration(budget)*time.Millisecond {
		n.LogWarning(fmt.Sprintf("tick took %v, over the %dms budget", d, budget))
	}
	return d
}

// RecordTickFailure updates total/failed tick counters and logs an error;
// it does not advance the successful-tick counters (spec §4.4).
func (n *NodeInfo) RecordTickFailure(msg string) {
	n.metricsLock.Lock()
	n.ticking = false
	n.metrics.TotalTicks++
	n.metrics.FailedTicks++
	n.metricsLock.Unlock()
	n.LogError(msg)
}

// MetricsSnapshot returns a copy of the current metrics.
func (n *NodeInfo) MetricsSnapshot() Metrics {
	n.metricsLock.Lock()
	defer n.metricsLock.Unlock()
	return n.metrics
}

// IncrementTopicCounter bumps the per-topic send/recv counter (spec §4.3).
func (n *NodeInfo) IncrementTopicCounter(topic string) {
	n.countersMu.Lock()
	defer n.countersMu.Unlock()
	n.topicCounters[topic]++
}

// TopicCounters returns a copy of the per-topic counters.
func (n *NodeInfo) TopicCounters() map[string]uint64 {
	n.countersMu.Lock()
	defer n.countersMu.Unlock()
	out := make(map[string]uint64, len(n.topicCounters))
	for k, v := range n.topicCounters {
		out[k] = v
	}
	return out
}

func (n *NodeInfo) pushError(msg string) {
	n.errorsMu.Lock()
	defer n.errorsMu.Unlock()
	n.errors = append(n.errors, LogRecord{Time: time.Now(), Message: msg})
	if len(n.errors) > ErrorWindowCapacity {
		n.errors = n.errors[len(n.errors)-ErrorWindowCapacity:]
	}
	n.errCount++
}

func (n *NodeInfo) pushWarning(msg string) {
	n.errorsMu.Lock()
	defer n.errorsMu.Unlock()
	n.warnings = append(n.warnings, LogRecord{Time: time.Now(), Message: msg})
	if len(n.warnings) > ErrorWindowCapacity {
		n.warnings = n.warnings[len(n.warnings)-ErrorWindowCapacity:]
	}
	n.warnCount++
}

// ErrorHistory returns a copy of the rolling error window.
func (n *NodeInfo) ErrorHistory() []LogRecord {
	n.errorsMu.Lock()
	defer n.errorsMu.Unlock()
	out := make([]LogRecord, len(n.errors))
	copy(out, n.errors)
	return out
}

// WarningHistory returns a copy of the rolling warning window.
func (n *NodeInfo) WarningHistory() []LogRecord {
	n.errorsMu.Lock()
	defer n.errorsMu.Unlock()
	out := make([]LogRecord, len(n.warnings))
	copy(out, n.warnings)
	return out
}

// ErrorCount and WarningCount are the lifetime counters backing
// NodeHeartbeat.error_count.
func (n *NodeInfo) ErrorCount() uint32 {
	n.errorsMu.Lock()
	defer n.errorsMu.Unlock()
	return n.errCount
}

func (n *NodeInfo) WarningCount() uint32 {
	n.errorsMu.Lock()
	defer n.errorsMu.Unlock()
	return n.warnCount
}
