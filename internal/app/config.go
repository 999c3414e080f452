package app

import (
	"strings"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"

	"netcode-csp/internal/observability"
	"netcode-csp/internal/tick"
	"netcode-csp/logging"
)

// Config is shared by both binaries. Every field can be set from a CSP_*
// environment variable; command line flags override the environment.
type Config struct {
	TickRate  int `config:"CSP_TICK_RATE"`
	FrameRate int `config:"CSP_FRAME_RATE"`

	Addr      string `config:"CSP_ADDR"`
	ServerURL string `config:"CSP_SERVER_URL"`
	Scene     string `config:"CSP_SCENE"`
	PlayerID  string `config:"CSP_PLAYER_ID"`

	InputRate     float64 `config:"CSP_INPUT_RATE"`
	InputBurst    int     `config:"CSP_INPUT_BURST"`
	InboxCapacity int     `config:"CSP_INBOX_CAPACITY"`
	WriteWaitMS   int     `config:"CSP_WRITE_WAIT_MS"`

	RedisAddr          string `config:"CSP_REDIS_ADDR"`
	SnapshotTTLSeconds int    `config:"CSP_SNAPSHOT_TTL_SECONDS"`

	StatsdAddr       string `config:"CSP_STATSD_ADDR"`
	StatsdTags       string `config:"CSP_STATSD_TAGS"`
	StatsIntervalSec int    `config:"CSP_STATS_INTERVAL_SECONDS"`

	LogLevel    string `config:"CSP_LOG_LEVEL"`
	LogSinks    string `config:"CSP_LOG_SINKS"`
	LogFile     string `config:"CSP_LOG_FILE"`
	LogColor    bool   `config:"CSP_LOG_COLOR"`
	EventLevel  string `config:"CSP_EVENT_LEVEL"`
	Profile     string `config:"CSP_PROFILE"`
	ProfilePath string `config:"CSP_PROFILE_PATH"`

	RebuildOnDesync bool `config:"CSP_REBUILD_ON_DESYNC"`
	RunSeconds      int  `config:"CSP_RUN_SECONDS"`
}

func DefaultConfig() Config {
	return Config{
		TickRate:         tick.DefaultRate,
		FrameRate:        60,
		Addr:             ":8080",
		ServerURL:        "ws://localhost:8080/ws",
		Scene:            "arena",
		InboxCapacity:    1024,
		WriteWaitMS:      5000,
		StatsIntervalSec: 10,
		LogLevel:         "info",
		LogSinks:         "console",
		LogFile:          "csp-events.jsonl",
		EventLevel:       "info",
		RebuildOnDesync:  true,
	}
}

// LoadConfig reads the environment on top of DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return Config{}, eris.Wrap(err, "load config from environment")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return eris.Errorf("tick rate must be positive, got %d", c.TickRate)
	}
	if c.FrameRate <= 0 {
		return eris.Errorf("frame rate must be positive, got %d", c.FrameRate)
	}
	if c.Scene == "" {
		return eris.New("scene name must not be empty")
	}
	if c.InputRate < 0 {
		return eris.Errorf("input rate must not be negative, got %v", c.InputRate)
	}
	for _, sink := range splitList(c.LogSinks) {
		if sink != "console" && sink != "json" && sink != "memory" {
			return eris.Errorf("unknown log sink %q", sink)
		}
	}
	return nil
}

func (c Config) WriteWait() time.Duration {
	return time.Duration(c.WriteWaitMS) * time.Millisecond
}

func (c Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

func (c Config) StatsInterval() time.Duration {
	if c.StatsIntervalSec <= 0 {
		return 0
	}
	return time.Duration(c.StatsIntervalSec) * time.Second
}

func (c Config) Observability() observability.Config {
	return observability.Config{Profile: c.Profile, ProfilePath: c.ProfilePath}
}

// Logging converts the flat settings into a router configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = splitList(c.LogSinks)
	cfg.MinimumSeverity = logging.ParseSeverity(c.EventLevel)
	cfg.JSON.FilePath = c.LogFile
	cfg.Console.UseColor = c.LogColor
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
