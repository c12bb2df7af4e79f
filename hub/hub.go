package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/horus-robotics/horus-core/config"
	"github.com/horus-robotics/horus-core/horuserr"
	"github.com/horus-robotics/horus-core/node"
	"github.com/horus-robotics/horus-core/shmtopic"
	"github.com/horus-robotics/horus-core/transport"
)

// GlobalPrefix marks a Hub name as global (not session-namespaced),
// spec §4.3/§6's "prefix or suffix convention". A name of "global:clock"
// resolves to the shared R/topics/clock region regardless of session.
const GlobalPrefix = "global:"

// DefaultCapacity is used by Create/FromConfig when no capacity is given.
const DefaultCapacity = 256

// Hub is the local, shared-memory-backed publish/subscribe façade for
// messages of type T (spec §4.3).
type Hub[T any] struct {
	nodeName    string
	logicalName string
	effective   string
	global      bool

	rt    config.Runtime
	topic *shmtopic.Topic[Envelope]
	codec Codec[T]

	state   transport.ConnState
	metrics metricsBox

	// node is optional; when bound, successful Send/TryRecv calls report
	// through it so NodeInfo.TopicCounters and the node log reflect
	// traffic actually flowing through the hub (spec §4.3/§4.4).
	node *node.NodeInfo
}

// BindNode attaches n to the Hub so successful sends/receives increment
// n's per-topic counters and emit PUB/SUB log lines (spec §4.4). Passing
// nil detaches any previously bound node.
func (h *Hub[T]) BindNode(n *node.NodeInfo) {
	h.node = n
}

func effectiveName(logical string) (name string, global bool) {
	if strings.HasPrefix(logical, GlobalPrefix) {
		return strings.TrimPrefix(logical, GlobalPrefix), true
	}
	return logical, false
}

// Create binds a new Hub to a newly created ring (spec §4.3 create()).
func Create[T any](rt config.Runtime, nodeName, name string, capacity int, codec Codec[T]) (*Hub[T], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logical, global := effectiveName(name)
	path := rt.TopicPath(logical, global)

	topic, err := shmtopic.Create[Envelope](path, capacity)
	if err != nil {
		return nil, err
	}
	h := &Hub[T]{
		nodeName: nodeName, logicalName: name, effective: path, global: global,
		rt: rt, topic: topic, codec: codec, state: transport.Connected,
	}
	return h, nil
}

// Open binds a Hub to an existing ring (spec §4.3 open()).
func Open[T any](rt config.Runtime, nodeName, name string, codec Codec[T]) (*Hub[T], error) {
	logical, global := effectiveName(name)
	path := rt.TopicPath(logical, global)

	topic, err := shmtopic.Open[Envelope](path)
	if err != nil {
		return nil, err
	}
	h := &Hub[T]{
		nodeName: nodeName, logicalName: name, effective: path, global: global,
		rt: rt, topic: topic, codec: codec, state: transport.Connected,
	}
	return h, nil
}

// FromConfig builds a Hub from a named [hubs.<name>] TOML section (spec
// §4.3 "config binding"). Only local (non-"@host:port") endpoints are
// supported by Hub itself; remote endpoints use hub.RemoteHub instead.
func FromConfig[T any](rt config.Runtime, nodeName string, cfg config.HubConfig, codec Codec[T]) (*Hub[T], error) {
	ep := config.ParseEndpoint(cfg.Endpoint)
	if ep.Host != "" {
		return nil, fmt.Errorf("hub endpoint %q is remote; use hub.RemoteHub: %w", cfg.Endpoint, horuserr.ErrConfiguration)
	}
	capacity := int(cfg.Capacity)
	if h, err := Open[T](rt, nodeName, ep.Topic, codec); err == nil {
		return h, nil
	}
	return Create[T](rt, nodeName, ep.Topic, capacity, codec)
}

// GetTopicName returns the logical (pre-namespacing) topic name.
func (h *Hub[T]) GetTopicName() string { return h.logicalName }

// GetConnectionState returns the Hub's connection state machine value.
func (h *Hub[T]) GetConnectionState() transport.ConnState { return h.state }

// GetMetrics returns a snapshot of the Hub's counters.
func (h *Hub[T]) GetMetrics() Metrics { return h.metrics.snapshot() }

// Send serializes msg and pushes it into the ring (spec §4.3 send()).
func (h *Hub[T]) Send(msg T) error {
	start := time.Now()
	env, err := h.encode(msg)
	if err != nil {
		h.metrics.recordSend(0, false)
		return err
	}
	err = h.topic.Push(env)
	dur := time.Since(start)
	h.metrics.recordSend(dur.Nanoseconds(), err == nil)
	if err != nil {
		return err
	}
	h.touch("pub", dur.Nanoseconds())
	return nil
}

// TryRecv is the non-blocking receive (spec §4.3 recv()/try_recv()).
func (h *Hub[T]) TryRecv() (T, bool, error) {
	start := time.Now()
	var zero T
	env, ok := h.topic.Pop()
	if !ok {
		return zero, false, nil // Empty is a valid None result, not an error
	}
	msg, err := h.decode(env)
	dur := time.Since(start)
	h.metrics.recordRecv(dur.Nanoseconds(), err == nil)
	if err != nil {
		return zero, false, err
	}
	h.touch("sub", dur.Nanoseconds())
	return msg, true, nil
}

// SendBatch sends up to len(msgs) messages, stopping at the first error
// (spec §4.3: "semantics are identical to repeated single calls").
func (h *Hub[T]) SendBatch(msgs []T) (int, error) {
	for i, m := range msgs {
		if err := h.Send(m); err != nil {
			return i, err
		}
	}
	return len(msgs), nil
}

// RecvBatch receives up to max messages, stopping early once the ring is
// empty.
func (h *Hub[T]) RecvBatch(max int) ([]T, error) {
	out := make([]T, 0, max)
	for i := 0; i < max; i++ {
		msg, ok, err := h.TryRecv()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

// Loan reserves the next ring slot for a zero-copy-style publish (spec
// §4.3 loan()). Call Publish or Abort on the result.
func (h *Hub[T]) Loan() (*LoanHandle[T], error) {
	wh, err := h.topic.Loan()
	if err != nil {
		h.metrics.recordSend(0, false)
		return nil, err
	}
	return &LoanHandle[T]{hub: h, wh: wh, start: time.Now()}, nil
}

func (h *Hub[T]) encode(msg T) (Envelope, error) {
	data, err := h.codec.Encode(msg)
	if err != nil {
		return Envelope{}, err
	}
	if len(data) > MaxPayloadBytes {
		return Envelope{}, fmt.Errorf("payload %d bytes exceeds max %d: %w", len(data), MaxPayloadBytes, horuserr.ErrSerializationFailed)
	}
	var env Envelope
	env.MsgTypeTag = uint32(h.codec.Tag())
	env.TimestampSec = float64(time.Now().UnixNano()) / 1e9
	env.Len = uint32(len(data))
	copy(env.Payload[:], data)
	return env, nil
}

func (h *Hub[T]) decode(env Envelope) (T, error) {
	var zero T
	if env.Len > MaxPayloadBytes {
		return zero, fmt.Errorf("envelope length %d exceeds max: %w", env.Len, horuserr.ErrDeserializeFailed)
	}
	return h.codec.Decode(env.Payload[:env.Len])
}

// touch writes the discovery metadata file for this {node, topic,
// direction}; its mtime is the discovery freshness signal (spec §4.3/§4.8).
// It also reports the successful transfer to the bound node, if any,
// incrementing its per-topic counter and emitting a PUB/SUB log line.
func (h *Hub[T]) touch(direction string, durationNs int64) {
	path := h.rt.PubSubMetaPath(h.nodeName, h.logicalName, direction)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	content := strconv.FormatInt(time.Now().Unix(), 10)
	_ = os.WriteFile(path, []byte(content), 0o644)

	if h.node == nil {
		return
	}
	switch direction {
	case "pub":
		h.node.LogPub(h.logicalName, h.effective, durationNs)
	case "sub":
		h.node.LogSub(h.logicalName, h.effective, durationNs)
	}
}

// Close releases this Hub's reference on the underlying ring region.
func (h *Hub[T]) Close() error {
	return h.topic.Close()
}

// LoanHandle is the zero-copy publish handle returned by Hub.Loan.
type LoanHandle[T any] struct {
	hub   *Hub[T]
	wh    *shmtopic.WriteHandle[Envelope]
	start time.Time
}

// Publish encodes msg into the reserved slot and commits it.
func (l *LoanHandle[T]) Publish(msg T) error {
	data, err := l.hub.codec.Encode(msg)
	if err != nil {
		l.wh.Abort()
		l.hub.metrics.recordSend(0, false)
		return err
	}
	if len(data) > MaxPayloadBytes {
		l.wh.Abort()
		l.hub.metrics.recordSend(0, false)
		return fmt.Errorf("payload %d bytes exceeds max %d: %w", len(data), MaxPayloadBytes, horuserr.ErrSerializationFailed)
	}
	env := l.wh.Value()
	env.MsgTypeTag = uint32(l.hub.codec.Tag())
	env.TimestampSec = float64(time.Now().UnixNano()) / 1e9
	env.Len = uint32(len(data))
	copy(env.Payload[:], data)

	if err := l.wh.Commit(); err != nil {
		l.hub.metrics.recordSend(0, false)
		return err
	}
	dur := time.Since(l.start)
	l.hub.metrics.recordSend(dur.Nanoseconds(), true)
	l.hub.touch("pub", dur.Nanoseconds())
	return nil
}

// Abort releases the reserved slot without publishing.
func (l *LoanHandle[T]) Abort() { l.wh.Abort() }
