package transport

import (
	"context"
	"testing"
)

func TestConnStateString(t *testing.T) {
	cases := map[ConnState]string{
		Disconnected: "Disconnected",
		Connecting:   "Connecting",
		Connected:    "Connected",
		Reconnecting: "Reconnecting",
		Failed:       "Failed",
		ConnState(99): "Unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("ConnState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestNewWebSocketAdapterStartsDisconnected(t *testing.T) {
	a := NewWebSocketAdapter("example.invalid:9999", "telemetry")
	if a.State() != Disconnected {
		t.Errorf("initial state = %v, want Disconnected", a.State())
	}
}

func TestWebSocketAdapterSendFailsWithoutServer(t *testing.T) {
	a := NewWebSocketAdapter("127.0.0.1:1", "telemetry")
	if err := a.Send(context.Background(), []byte("hi")); err == nil {
		t.Fatal("expected Send against an unreachable endpoint to fail")
	}
	if a.State() != Failed {
		t.Errorf("state after failed dial = %v, want Failed", a.State())
	}
}
