// Package discovery implements the pure "filesystem state -> live view
// of the system" function spec §4.8 describes. It never talks to a
// running node or scheduler process directly; it only reads the
// touch-files, heartbeats, registries, and /proc that those processes
// already maintain.
package discovery

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/horus-robotics/horus-core/scheduler"
)

// Defaults from spec §4.8.
const (
	DefaultFreshness = 30 * time.Second
	DefaultGC        = 60 * time.Second
	DefaultCacheTTL  = 250 * time.Millisecond
)

// NodeView is one discovered node (spec §4.8 outputs).
type NodeView struct {
	Name        string
	Active      bool
	Health      string
	State       string
	TickCount   uint64
	PID         int    // 0 if unknown
	WorkingDir  string // from a registry, if any
	Priority    uint32
	Publishers  []scheduler.PubSubEntry
	Subscribers []scheduler.PubSubEntry
}

// TopicView is one discovered topic (spec §4.8 outputs).
type TopicView struct {
	Name       string
	Global     bool
	Active     bool
	SizeBytes  int64
	RateHz     float64
	Publishers []string
	Subscriber []string
}

// Snapshot is one discovery pass's result.
type Snapshot struct {
	Nodes  []NodeView
	Topics []TopicView
}

// rateState remembers the previous mtime observation for a topic file so
// RateHz can be estimated across calls (spec R5: "estimated from
// successive observations... first observation yields rate 0").
type rateState struct {
	lastMtime time.Time
	lastRate  float64
}

// Discoverer runs discovery passes over a HORUS root directory, caching
// results briefly to bound the cost of rapid polling (spec §4.8:
// "cached for a short interval, default 250ms").
type Discoverer struct {
	ShmRoot  string
	Home     string // $HOME, for scheduler registries
	Fresh    time.Duration
	GC       time.Duration
	CacheTTL time.Duration

	group   singleflight.Group
	rates   map[string]*rateState
	cacheAt time.Time
	cached  Snapshot
}

// New returns a Discoverer with spec-default windows.
func New(shmRoot, home string) *Discoverer {
	return &Discoverer{
		ShmRoot:  shmRoot,
		Home:     home,
		Fresh:    DefaultFreshness,
		GC:       DefaultGC,
		CacheTTL: DefaultCacheTTL,
		rates:    make(map[string]*rateState),
	}
}

// Scan runs (or returns a cached) discovery pass. Concurrent callers
// within CacheTTL collapse onto the same underlying scan via
// singleflight, the way a busy monitor UI polling every frame should not
// each trigger their own filesystem walk.
func (d *Discoverer) Scan(now time.Time) (Snapshot, error) {
	if !d.cacheAt.IsZero() && now.Sub(d.cacheAt) < d.CacheTTL {
		return d.cached, nil
	}

	v, err, _ := d.group.Do("scan", func() (any, error) {
		snap, err := d.scan(now)
		if err != nil {
			return Snapshot{}, err
		}
		d.cached = snap
		d.cacheAt = now
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (d *Discoverer) scan(now time.Time) (Snapshot, error) {
	active := d.scanPubSubMetadata(now) // R1: node_name -> true if active
	registries := d.scanRegistries()    // R4
	heartbeats := d.scanHeartbeats()    // R2

	nodes := make([]NodeView, 0, len(active))
	for name := range active {
		nv := NodeView{Name: name, Active: true, State: "Unknown", Health: "Unknown"}

		if hb, ok := heartbeats[name]; ok {
			nv.State = hb.state
			nv.Health = hb.health
			nv.TickCount = hb.tickCount
			if hb.health == "" {
				nv.Health = "Unknown"
			}
			stale := now.Sub(hb.timestamp) > d.Fresh
			if stale && nv.State == "Running" {
				nv.State = "Frozen"   // R2
				nv.Health = "Critical" // spec scenario B5
			}
		}

		if entry, ok := registries.nodeEntries[name]; ok {
			nv.Priority = entry.entry.Priority
			nv.Publishers = entry.entry.Publishers
			nv.Subscribers = entry.entry.Subscribers
			nv.WorkingDir = entry.workingDir
			nv.PID = entry.pid
		}

		nodes = append(nodes, nv)
	}

	topics, err := d.scanTopics(now)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Nodes: nodes, Topics: topics}, nil
}

// scanPubSubMetadata implements R1: a node is active iff at least one
// touch-file naming it has mtime within the freshness window.
func (d *Discoverer) scanPubSubMetadata(now time.Time) map[string]bool {
	active := make(map[string]bool)
	dir := filepath.Join(d.ShmRoot, "pubsub_metadata")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return active
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > d.Fresh {
			continue
		}
		node, _, _, ok := parseMetadataName(e.Name())
		if !ok {
			continue
		}
		active[node] = true
	}
	return active
}

// parseMetadataName splits a pubsub_metadata/<node>_<safe_topic>_<pub|sub>
// filename (spec §6). The direction suffix is unambiguous; node and
// topic are themselves '_'-joined so the split is from the right.
func parseMetadataName(name string) (node, topic, direction string, ok bool) {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return "", "", "", false
	}
	direction = name[idx+1:]
	if direction != "pub" && direction != "sub" {
		return "", "", "", false
	}
	rest := name[:idx]
	idx2 := strings.Index(rest, "_")
	if idx2 < 0 {
		return "", "", "", false
	}
	return rest[:idx2], rest[idx2+1:], direction, true
}

type heartbeatView struct {
	state     string
	health    string
	tickCount uint64
	timestamp time.Time
}

// scanHeartbeats reads every heartbeat file, using gjson for a fast
// field-at-a-time read instead of a full json.Unmarshal per file — the
// scan only needs four fields out of the document.
func (d *Discoverer) scanHeartbeats() map[string]heartbeatView {
	out := make(map[string]heartbeatView)
	dir := filepath.Join(d.ShmRoot, "heartbeats")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		res := gjson.ParseBytes(b)
		if !res.Exists() {
			continue
		}
		out[e.Name()] = heartbeatView{
			state:     res.Get("state").String(),
			health:    res.Get("health").String(),
			tickCount: res.Get("tick_count").Uint(),
			timestamp: time.Unix(res.Get("heartbeat_timestamp").Int(), 0),
		}
	}
	return out
}

type registryNodeEntry struct {
	entry      scheduler.NodeEntry
	workingDir string
	pid        int
}

type registryScan struct {
	nodeEntries map[string]registryNodeEntry
}

// scanRegistries implements R4 (supplemental node metadata) and the
// "registries whose pid is dead are deleted on sight" half of R4.
func (d *Discoverer) scanRegistries() registryScan {
	out := registryScan{nodeEntries: make(map[string]registryNodeEntry)}
	if d.Home == "" {
		return out
	}

	paths, err := scheduler.ListRegistryFiles(d.Home)
	if err != nil {
		return out
	}
	for _, path := range paths {
		reg, err := scheduler.Read(path)
		if err != nil {
			continue
		}
		if !processAlive(reg.PID) {
			_ = scheduler.Remove(path)
			continue
		}
		for _, n := range reg.Nodes {
			out.nodeEntries[n.Name] = registryNodeEntry{entry: n, workingDir: reg.WorkingDir, pid: reg.PID}
		}
	}
	return out
}

// processAlive reports whether pid names a live process, by checking
// /proc/<pid> existence (spec §4.8: "the operating system's process
// table"). Platforms without /proc always report unknown-but-alive, so
// registries are not spuriously deleted on systems where this check
// cannot be performed.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if _, err := os.Stat("/proc"); err != nil {
		return true
	}
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return err == nil
}

// scanTopics implements R3, R5, R6 over both the session-scoped and
// global topic directories.
func (d *Discoverer) scanTopics(now time.Time) ([]TopicView, error) {
	var out []TopicView

	globalDir := filepath.Join(d.ShmRoot, "topics")
	if views, err := d.scanTopicDir(globalDir, true, now); err == nil {
		out = append(out, views...)
	}

	sessionsDir := filepath.Join(d.ShmRoot, "sessions")
	sessionEntries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return out, nil
	}
	for _, s := range sessionEntries {
		if !s.IsDir() {
			continue
		}
		dir := filepath.Join(sessionsDir, s.Name(), "topics")
		views, err := d.scanTopicDir(dir, false, now)
		if err != nil {
			continue
		}
		out = append(out, views...)
	}
	return out, nil
}

func (d *Discoverer) scanTopicDir(dir string, global bool, now time.Time) ([]TopicView, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var views []TopicView
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}

		active := now.Sub(info.ModTime()) <= d.Fresh || hasLiveAccessor(path)

		if !active && now.Sub(info.ModTime()) > d.GC {
			_ = os.Remove(path) // R6
			continue
		}

		views = append(views, TopicView{
			Name:      e.Name(),
			Global:    global,
			Active:    active,
			SizeBytes: info.Size(),
			RateHz:    d.estimateRate(path, info.ModTime(), now),
		})
	}
	return views, nil
}

// estimateRate implements R5: rate from successive mtime observations,
// 0 on the first observation of a given topic path.
func (d *Discoverer) estimateRate(path string, mtime, now time.Time) float64 {
	st, ok := d.rates[path]
	if !ok {
		d.rates[path] = &rateState{lastMtime: mtime}
		return 0
	}
	if mtime.Equal(st.lastMtime) {
		return st.lastRate
	}
	elapsed := now.Sub(st.lastMtime).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = 1.0 / elapsed
	}
	st.lastMtime = mtime
	st.lastRate = rate
	return rate
}

// hasLiveAccessor implements R3's alternative activity signal: at least
// one process has path open, discovered by scanning /proc/*/fd symlink
// targets. Best-effort: permission errors on other users' fd directories
// are silently skipped rather than failing the whole scan.
func hasLiveAccessor(path string) bool {
	procEntries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, p := range procEntries {
		if _, err := strconv.Atoi(p.Name()); err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", p.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if target == abs {
				return true
			}
		}
	}
	return false
}
