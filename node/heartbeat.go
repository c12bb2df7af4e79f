package node

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Heartbeat is NodeHeartbeat (spec §3/§4.4/§6): a derived snapshot of
// NodeInfo written atomically to a well-known path for out-of-process
// monitoring. Every field is required in the JSON schema.
type Heartbeat struct {
	State              string `json:"state"`
	Health             string `json:"health"`
	TickCount          uint64 `json:"tick_count"`
	TargetRateHz       uint32 `json:"target_rate_hz"`
	ActualRateHz       uint32 `json:"actual_rate_hz"`
	ErrorCount         uint32 `json:"error_count"`
	LastTickTimestamp  uint64 `json:"last_tick_timestamp"`
	HeartbeatTimestamp uint64 `json:"heartbeat_timestamp"`
}

// Health string values (spec §6).
const (
	HealthHealthy  = "Healthy"
	HealthWarning  = "Warning"
	HealthError    = "Error"
	HealthCritical = "Critical"
	HealthUnknown  = "Unknown"
)

// DeriveHeartbeat builds a Heartbeat snapshot from the node's current
// state and metrics (spec §4.4). targetRateHz is the node's configured
// tick rate, 0 if none.
func (n *NodeInfo) DeriveHeartbeat(targetRateHz uint32) Heartbeat {
	st := n.State()
	m := n.MetricsSnapshot()

	stateStr := st.String()
	if st == Error || st == Crashed {
		if hist := n.ErrorHistory(); len(hist) > 0 {
			stateStr = fmt.Sprintf("%s: %s", stateStr, hist[len(hist)-1].Message)
		}
	}

	var actualRateHz uint32
	if m.AvgTickDurationMs > 0 {
		actualRateHz = uint32(1000.0 / m.AvgTickDurationMs)
	}

	health := HealthUnknown
	switch st {
	case Running:
		if n.ErrorCount() > 0 {
			health = HealthWarning
		} else {
			health = HealthHealthy
		}
	case Paused:
		health = HealthWarning
	case Error:
		health = HealthError
	case Crashed:
		health = HealthCritical
	case Stopped, Stopping:
		health = HealthUnknown
	}

	return Heartbeat{
		State:              stateStr,
		Health:             health,
		TickCount:          m.TotalTicks,
		TargetRateHz:       targetRateHz,
		ActualRateHz:       actualRateHz,
		ErrorCount:         n.ErrorCount(),
		LastTickTimestamp:  uint64(m.LastTickTime.Unix()),
		HeartbeatTimestamp: uint64(time.Now().Unix()),
	}
}

// WriteHeartbeat writes hb to path as a whole-file replace
// (temp-file-then-rename), so readers never observe a partial document
// (spec §4.4).
func WriteHeartbeat(path string, hb Heartbeat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	b, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".heartbeat-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp heartbeat: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp heartbeat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp heartbeat: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename heartbeat into place: %w", err)
	}
	return nil
}

// ReadHeartbeat reads back a heartbeat document written by WriteHeartbeat.
func ReadHeartbeat(path string) (Heartbeat, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Heartbeat{}, err
	}
	var hb Heartbeat
	if err := json.Unmarshal(b, &hb); err != nil {
		return Heartbeat{}, fmt.Errorf("parse heartbeat %s: %w", path, err)
	}
	return hb, nil
}

// Emitter periodically derives and writes a node's heartbeat at a bounded
// cadence (spec §4.4/§9: "max once per 100ms").
type Emitter struct {
	node         *NodeInfo
	path         string
	targetRateHz uint32
	interval     time.Duration
}

func NewEmitter(n *NodeInfo, path string, targetRateHz uint32) *Emitter {
	interval := time.Duration(n.Config.HeartbeatIntervalMs) * time.Millisecond
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return &Emitter{node: n, path: path, targetRateHz: targetRateHz, interval: interval}
}

// Run blocks, writing a heartbeat on every tick of the configured
// interval, until ctx-like stopping is signaled via the stop channel.
func (e *Emitter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hb := e.node.DeriveHeartbeat(e.targetRateHz)
			if err := WriteHeartbeat(e.path, hb); err != nil {
				e.node.LogWarning(fmt.Sprintf("heartbeat write failed: %v", err))
			}
		}
	}
}
