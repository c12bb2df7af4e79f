package hub

import (
	"context"
	"time"

	"github.com/horus-robotics/horus-core/config"
	"github.com/horus-robotics/horus-core/transport"
)

// RemoteHub is the sketch counterpart to Hub for the "topic@host:port"
// endpoint form (spec §9). It has the same codec/metrics shape but talks
// through a transport.Adapter instead of shmtopic, and its connection
// state genuinely tracks the underlying socket rather than being pinned
// to Connected.
type RemoteHub[T any] struct {
	nodeName    string
	logicalName string
	adapter     transport.Adapter
	codec       Codec[T]
	metrics     metricsBox
}

// DialRemote opens a RemoteHub against a "host:port" endpoint.
func DialRemote[T any](nodeName string, ep config.HubEndpoint, codec Codec[T]) *RemoteHub[T] {
	return &RemoteHub[T]{
		nodeName:    nodeName,
		logicalName: ep.Topic,
		adapter:     transport.NewWebSocketAdapter(ep.Host, ep.Topic),
		codec:       codec,
	}
}

func (h *RemoteHub[T]) GetTopicName() string { return h.logicalName }
func (h *RemoteHub[T]) GetConnectionState() transport.ConnState { return h.adapter.State() }
func (h *RemoteHub[T]) GetMetrics() Metrics { return h.metrics.snapshot() }

func (h *RemoteHub[T]) Send(ctx context.Context, msg T) error {
	start := time.Now()
	data, err := h.codec.Encode(msg)
	if err != nil {
		h.metrics.recordSend(0, false)
		return err
	}
	err = h.adapter.Send(ctx, data)
	h.metrics.recordSend(time.Since(start).Nanoseconds(), err == nil)
	return err
}

func (h *RemoteHub[T]) Recv(ctx context.Context) (T, error) {
	start := time.Now()
	var zero T
	data, err := h.adapter.Recv(ctx)
	if err != nil {
		h.metrics.recordRecv(time.Since(start).Nanoseconds(), false)
		return zero, err
	}
	msg, err := h.codec.Decode(data)
	h.metrics.recordRecv(time.Since(start).Nanoseconds(), err == nil)
	return msg, err
}

func (h *RemoteHub[T]) Close() error { return h.adapter.Close() }
