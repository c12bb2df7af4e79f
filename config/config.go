// Package config loads HORUS runtime configuration: the top-level
// horus.toml, per-Hub config sections, and environment overrides. It
// follows the same os.ReadFile + toml.Unmarshal shape the feeder's
// config.Load used for exchange credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/horus-robotics/horus-core/horuserr"
)

// HubEndpoint is the parsed form of a Hub config entry's `endpoint` field,
// which is either "topic_name" (local, shared-memory) or
// "topic_name@host:port" (remote, network-adapter backed; spec §9).
type HubEndpoint struct {
	Topic string
	Host  string // empty for local endpoints
}

// HubConfig is one [hubs.<name>] section.
type HubConfig struct {
	Endpoint string `toml:"endpoint"`
	Capacity uint32 `toml:"capacity"`
}

// Config is the root horus.toml document.
type Config struct {
	Hubs map[string]HubConfig `toml:"hubs"`
}

// Load reads and parses a horus.toml file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, horuserr.ErrIO)
	}
	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %v", path, horuserr.ErrConfiguration, err)
	}
	return &c, nil
}

// Hub looks up a named Hub section, returning ErrConfiguration if absent.
func (c *Config) Hub(name string) (HubConfig, error) {
	hc, ok := c.Hubs[name]
	if !ok {
		return HubConfig{}, fmt.Errorf("hub %q: %w", name, horuserr.ErrConfiguration)
	}
	return hc, nil
}

// ParseEndpoint splits "topic_name" or "topic_name@host:port" per spec §6.
func ParseEndpoint(raw string) HubEndpoint {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '@' {
			return HubEndpoint{Topic: raw[:i], Host: raw[i+1:]}
		}
	}
	return HubEndpoint{Topic: raw}
}

// Runtime holds process-wide settings sourced from the environment,
// per spec §6's recognized HORUS_* variables.
type Runtime struct {
	SessionID string
	ShmRoot   string
	LogLevel  string
}

// DefaultShmRoot is R from spec §6 on systems with /dev/shm.
const DefaultShmRoot = "/dev/shm/horus"

// LoadEnv loads a .env file (if present, best-effort like the feeder's
// dotenv use for exchange secrets) and reads the HORUS_* variables.
func LoadEnv(dotenvPath string) Runtime {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath) // optional; missing .env is not an error
	}

	rt := Runtime{
		SessionID: os.Getenv("HORUS_SESSION_ID"),
		ShmRoot:   os.Getenv("HORUS_SHM_ROOT"),
		LogLevel:  os.Getenv("HORUS_LOG_LEVEL"),
	}
	if rt.ShmRoot == "" {
		rt.ShmRoot = DefaultShmRoot
	}
	if rt.LogLevel == "" {
		rt.LogLevel = "INFO"
	}
	if rt.SessionID == "" {
		rt.SessionID = fmt.Sprintf("pid-%d", os.Getpid())
	}
	return rt
}

// TopicPath resolves the filesystem path backing a topic region, honoring
// session scoping unless the name is global (spec §4.3/§6).
func (rt Runtime) TopicPath(name string, global bool) string {
	safe := SafeName(name)
	if global {
		return filepath.Join(rt.ShmRoot, "topics", safe)
	}
	return filepath.Join(rt.ShmRoot, "sessions", rt.SessionID, "topics", safe)
}

func (rt Runtime) HeartbeatPath(nodeName string) string {
	return filepath.Join(rt.ShmRoot, "heartbeats", nodeName)
}

func (rt Runtime) PubSubMetaPath(nodeName, topicName, direction string) string {
	return filepath.Join(rt.ShmRoot, "pubsub_metadata", fmt.Sprintf("%s_%s_%s", nodeName, SafeName(topicName), direction))
}

// SafeName replaces characters illegal in a path segment, per spec §6.
func SafeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '/', ' ':
			out[i] = '_'
		default:
			out[i] = name[i]
		}
	}
	return string(out)
}
