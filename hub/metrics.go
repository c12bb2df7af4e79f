package hub

import "sync/atomic"

// Metrics are the per-Hub counters from spec §4.3.
type Metrics struct {
	MessagesSent      uint64
	MessagesReceived  uint64
	SendFailures      uint64
	RecvFailures      uint64
	LastSendDurationNs int64
	LastRecvDurationNs int64
}

type metricsBox struct {
	sent, recv, sendFail, recvFail uint64
	lastSendNs, lastRecvNs         int64
}

func (m *metricsBox) snapshot() Metrics {
	return Metrics{
		MessagesSent:       atomic.LoadUint64(&m.sent),
		MessagesReceived:   atomic.LoadUint64(&m.recv),
		SendFailures:       atomic.LoadUint64(&m.sendFail),
		RecvFailures:       atomic.LoadUint64(&m.recvFail),
		LastSendDurationNs: atomic.LoadInt64(&m.lastSendNs),
		LastRecvDurationNs: atomic.LoadInt64(&m.lastRecvNs),
	}
}

func (m *metricsBox) recordSend(durationNs int64, ok bool) {
	if ok {
		atomic.AddUint64(&m.sent, 1)
	} else {
		atomic.AddUint64(&m.sendFail, 1)
	}
	atomic.StoreInt64(&m.lastSendNs, durationNs)
}

func (m *metricsBox) recordRecv(durationNs int64, ok bool) {
	if ok {
		atomic.AddUint64(&m.recv, 1)
	} else {
		atomic.AddUint64(&m.recvFail, 1)
	}
	atomic.StoreInt64(&m.lastRecvNs, durationNs)
}
