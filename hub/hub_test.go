package hub

import (
	"testing"

	"github.com/horus-robotics/horus-core/config"
	"github.com/horus-robotics/horus-core/node"
)

type tick struct {
	Seq   uint64
	Value float64
}

func testRuntime(t *testing.T) config.Runtime {
	return config.Runtime{SessionID: "test-session", ShmRoot: t.TempDir()}
}

func TestSendRecvJSON(t *testing.T) {
	rt := testRuntime(t)
	pub, err := Create[tick](rt, "producer", "ticks", 8, JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer pub.Close()

	sub, err := Open[tick](rt, "consumer", "ticks", JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	if err := pub.Send(tick{Seq: 1, Value: 3.14}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, ok, err := sub.TryRecv()
	if err != nil || !ok {
		t.Fatalf("TryRecv: got=%v ok=%v err=%v", got, ok, err)
	}
	if got.Seq != 1 || got.Value != 3.14 {
		t.Errorf("TryRecv = %+v, want {1 3.14}", got)
	}

	m := pub.GetMetrics()
	if m.MessagesSent != 1 {
		t.Errorf("MessagesSent = %d, want 1", m.MessagesSent)
	}
	if sub.GetMetrics().MessagesReceived != 1 {
		t.Errorf("MessagesReceived = %d, want 1", sub.GetMetrics().MessagesReceived)
	}
}

func TestSendRecvBinary(t *testing.T) {
	rt := testRuntime(t)
	pub, err := Create[tick](rt, "producer", "ticks2", 8, BinaryCodec[tick]{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer pub.Close()
	sub, err := Open[tick](rt, "consumer", "ticks2", BinaryCodec[tick]{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	if err := pub.Send(tick{Seq: 7, Value: 1.5}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, ok, err := sub.TryRecv()
	if err != nil || !ok || got.Seq != 7 {
		t.Fatalf("TryRecv = %+v ok=%v err=%v", got, ok, err)
	}
}

func TestGlobalTopicIgnoresSession(t *testing.T) {
	tmp := t.TempDir()
	rtA := config.Runtime{SessionID: "session-a", ShmRoot: tmp}
	rtB := config.Runtime{SessionID: "session-b", ShmRoot: tmp}

	pub, err := Create[tick](rtA, "producer", "global:clock", 4, JSONCodec[tick]{})
	if err == nil {
		defer pub.Close()
	}
	if err != nil {
		t.Fatalf("Create global: %v", err)
	}

	sub, err := Open[tick](rtB, "consumer", "global:clock", JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Open global from a different session should succeed: %v", err)
	}
	defer sub.Close()
}

func TestLoanPublish(t *testing.T) {
	rt := testRuntime(t)
	pub, err := Create[tick](rt, "producer", "loaned", 4, JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer pub.Close()
	sub, err := Open[tick](rt, "consumer", "loaned", JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	loan, err := pub.Loan()
	if err != nil {
		t.Fatalf("Loan: %v", err)
	}
	if err := loan.Publish(tick{Seq: 9, Value: 2.0}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, ok, err := sub.TryRecv()
	if err != nil || !ok || got.Seq != 9 {
		t.Fatalf("TryRecv after loan = %+v ok=%v err=%v", got, ok, err)
	}
}

// TestBoundNodeCountersOnSendRecv covers spec §4.4: a successful hub
// send/recv must increment the bound NodeInfo's per-topic counters.
func TestBoundNodeCountersOnSendRecv(t *testing.T) {
	rt := testRuntime(t)
	producer := node.New("producer", node.NodeConfig{})
	consumer := node.New("consumer", node.NodeConfig{})

	pub, err := Create[tick](rt, "producer", "bound", 4, JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer pub.Close()
	pub.BindNode(producer)

	sub, err := Open[tick](rt, "consumer", "bound", JSONCodec[tick]{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()
	sub.BindNode(consumer)

	if err := pub.Send(tick{Seq: 1, Value: 1.0}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok, err := sub.TryRecv(); err != nil || !ok {
		t.Fatalf("TryRecv: ok=%v err=%v", ok, err)
	}

	if got := producer.TopicCounters()["bound"]; got != 1 {
		t.Errorf("producer topic counter = %d, want 1", got)
	}
	if got := consumer.TopicCounters()["bound"]; got != 1 {
		t.Errorf("consumer topic counter = %d, want 1", got)
	}
}

func TestRawCodecHeterogeneousPayload(t *testing.T) {
	rt := testRuntime(t)
	pub, err := Create[[]byte](rt, "producer", "raw", 4, RawCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer pub.Close()
	sub, err := Open[[]byte](rt, "consumer", "raw", RawCodec{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	if err := pub.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, ok, err := sub.TryRecv()
	if err != nil || !ok || string(got) != "hello" {
		t.Fatalf("TryRecv = %q ok=%v err=%v", got, ok, err)
	}
}
