package node

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level gates which log_* calls actually render (spec §6 HORUS_LOG_LEVEL).
type Level int

const (
	LevelQuiet Level = iota
	LevelInfo
	LevelDebug
)

func ParseLevel(s string) Level {
	switch s {
	case "QUIET":
		return LevelQuiet
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Entry is a structured record pushed onto the process-global log buffer
// (spec §4.4 log_pub/log_sub: "push a structured record onto a
// process-global log buffer").
type Entry struct {
	Time       time.Time
	Node       string
	Level      string
	Message    string
	Topic      string
	DurationNs int64
}

// ringBuffer is a bounded MPSC queue with drop-oldest overflow (spec §5:
// "The global log buffer is a bounded MPSC queue with drop-oldest
// overflow").
type ringBuffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	size     int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{entries: make([]Entry, capacity), capacity: capacity}
}

func (b *ringBuffer) push(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Drain returns a copy of the buffered entries in emission order, oldest
// first, without clearing the buffer.
func (b *ringBuffer) Drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, b.size)
	start := (b.next - b.size + b.capacity) % b.capacity
	for i := 0; i < b.size; i++ {
		out = append(out, b.entries[(start+i)%b.capacity])
	}
	return out
}

// GlobalLogBufferCapacity bounds the process-wide structured log buffer.
const GlobalLogBufferCapacity = 4096

var globalLog = newRingBuffer(GlobalLogBufferCapacity)

// DrainGlobalLog returns every buffered structured log entry, oldest
// first. Intended for diagnostics/dashboards, not the hot path.
func DrainGlobalLog() []Entry { return globalLog.Drain() }

var (
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	stylePub   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleSub   = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	styleNode  = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Bold(true)
)

// Logger renders colorized single-line records for one node (spec §4.4
// log_pub/log_sub: "emit a colorized single-line record to stdout/stderr").
type Logger struct {
	node  string
	level Level
}

func NewLogger(node string) *Logger {
	return &Logger{node: node, level: ParseLevel(os.Getenv("HORUS_LOG_LEVEL"))}
}

func (l *Logger) line(style lipgloss.Style, tag, msg string) string {
	return fmt.Sprintf("%s [%s] %s", styleNode.Render(l.node), style.Render(tag), msg)
}

func (n *NodeInfo) LogInfo(msg string) {
	if n.logger.level < LevelInfo {
		return
	}
	fmt.Println(n.logger.line(styleInfo, "INFO", msg))
	globalLog.push(Entry{Time: time.Now(), Node: n.Name, Level: "INFO", Message: msg})
}

func (n *NodeInfo) LogDebug(msg string) {
	if n.logger.level < LevelDebug {
		return
	}
	fmt.Println(n.logger.line(styleDebug, "DEBUG", msg))
	globalLog.push(Entry{Time: time.Now(), Node: n.Name, Level: "DEBUG", Message: msg})
}

func (n *NodeInfo) LogWarning(msg string) {
	n.pushWarning(msg)
	if n.logger.level < LevelInfo {
		return
	}
	fmt.Fprintln(os.Stderr, n.logger.line(styleWarn, "WARN", msg))
	globalLog.push(Entry{Time: time.Now(), Node: n.Name, Level: "WARN", Message: msg})
}

func (n *NodeInfo) LogError(msg string) {
	n.pushError(msg)
	if n.logger.level < LevelInfo {
		return
	}
	fmt.Fprintln(os.Stderr, n.logger.line(styleError, "ERROR", msg))
	globalLog.push(Entry{Time: time.Now(), Node: n.Name, Level: "ERROR", Message: msg})
}

// LogPub emits a single-line record for a publish event and increments
// the per-topic counter (spec §4.3/§4.4).
func (n *NodeInfo) LogPub(topic, summary string, durationNs int64) {
	n.IncrementTopicCounter(topic)
	if n.logger.level >= LevelInfo {
		msg := fmt.Sprintf("-> %s %s (%dns)", topic, summary, durationNs)
		fmt.Println(n.logger.line(stylePub, "PUB", msg))
	}
	globalLog.push(Entry{Time: time.Now(), Node: n.Name, Level: "PUB", Message: summary, Topic: topic, DurationNs: durationNs})
}

// LogSub emits a single-line record for a receive event and increments
// the per-topic counter.
func (n *NodeInfo) LogSub(topic, summary string, durationNs int64) {
	n.IncrementTopicCounter(topic)
	if n.logger.level >= LevelInfo {
		msg := fmt.Sprintf("<- %s %s (%dns)", topic, summary, durationNs)
		fmt.Println(n.logger.line(styleSub, "SUB", msg))
	}
	globalLog.push(Entry{Time: time.Now(), Node: n.Name, Level: "SUB", Message: summary, Topic: topic, DurationNs: durationNs})
}
