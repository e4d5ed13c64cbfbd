// Package config loads service configuration from an optional TOML file
// named by JOURNEY_CONFIG, overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/WessleyAI/journeyplanner/engine/journey"
)

// EnvFile names the variable holding the TOML file path.
const EnvFile = "JOURNEY_CONFIG"

// Config holds all service configuration.
type Config struct {
	// Snapshot, when set, makes services load this graph snapshot into
	// memory instead of connecting to Neo4j.
	Snapshot string  `toml:"snapshot"`
	Neo4j    Neo4j   `toml:"neo4j"`
	NATS     NATS    `toml:"nats"`
	Server   Server  `toml:"server"`
	Search   Search  `toml:"search"`
	Planner  Planner `toml:"planner"`
	Trace    Trace   `toml:"trace"`
}

type Neo4j struct {
	URL       string   `toml:"url"`
	User      string   `toml:"user"`
	Pass      string   `toml:"pass"`
	Database  string   `toml:"database"`
	TxTimeout Duration `toml:"tx_timeout"`
}

type NATS struct {
	URL string `toml:"url"`
}

type Server struct {
	HTTPPort string `toml:"http_port"`
	GRPCPort string `toml:"grpc_port"`
}

// Search holds the default request limits.
type Search struct {
	MaxJourneys    int      `toml:"max_journeys"`
	MaxChanges     int      `toml:"max_changes"`
	MaxInitialWait Duration `toml:"max_initial_wait"`
	MaxDuration    Duration `toml:"max_duration"`
	Expansion      string   `toml:"expansion"`
	Stop           string   `toml:"stop"`
}

type Planner struct {
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

// Trace selects the span exporter: "none", "stdout" or "otlp".
type Trace struct {
	Exporter     string `toml:"exporter"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Duration is a time.Duration written as "30s" in TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the configuration used when nothing is set.
func Default() Config {
	l := journey.DefaultLimits()
	return Config{
		Neo4j: Neo4j{
			URL:       "neo4j://localhost:7687",
			User:      "neo4j",
			Pass:      "password",
			Database:  "neo4j",
			TxTimeout: Duration{30 * time.Second},
		},
		NATS:   NATS{URL: "nats://localhost:4222"},
		Server: Server{HTTPPort: "8080", GRPCPort: "50051"},
		Search: Search{
			MaxJourneys:    l.MaxJourneys,
			MaxChanges:     l.MaxChanges,
			MaxInitialWait: Duration{l.MaxInitialWait},
			MaxDuration:    Duration{l.MaxDuration},
			Expansion:      l.Expansion.String(),
			Stop:           l.Stop.String(),
		},
		Planner: Planner{Rate: 50, Burst: 100},
		Trace:   Trace{Exporter: "none", OTLPEndpoint: "localhost:4317", ServiceName: "journeyd"},
	}
}

// Load reads the file named by JOURNEY_CONFIG, if any, then the environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv(EnvFile), os.Getenv)
}

// LoadFrom reads path, when non-empty, over the defaults and applies the
// variables getenv returns on top.
func LoadFrom(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("config: %s: unknown key %s", path, undecoded[0])
		}
	}
	e := env{get: getenv}
	e.str("JOURNEY_SNAPSHOT", &cfg.Snapshot)
	e.str("NEO4J_URL", &cfg.Neo4j.URL)
	e.str("NEO4J_USER", &cfg.Neo4j.User)
	e.str("NEO4J_PASS", &cfg.Neo4j.Pass)
	e.str("NEO4J_DATABASE", &cfg.Neo4j.Database)
	e.duration("NEO4J_TX_TIMEOUT", &cfg.Neo4j.TxTimeout)
	e.str("NATS_URL", &cfg.NATS.URL)
	e.str("HTTP_PORT", &cfg.Server.HTTPPort)
	e.str("GRPC_PORT", &cfg.Server.GRPCPort)
	e.integer("SEARCH_MAX_JOURNEYS", &cfg.Search.MaxJourneys)
	e.integer("SEARCH_MAX_CHANGES", &cfg.Search.MaxChanges)
	e.duration("SEARCH_MAX_INITIAL_WAIT", &cfg.Search.MaxInitialWait)
	e.duration("SEARCH_MAX_DURATION", &cfg.Search.MaxDuration)
	e.str("SEARCH_EXPANSION", &cfg.Search.Expansion)
	e.str("SEARCH_STOP", &cfg.Search.Stop)
	e.float("PLAN_RATE", &cfg.Planner.Rate)
	e.integer("PLAN_BURST", &cfg.Planner.Burst)
	e.str("TRACE_EXPORTER", &cfg.Trace.Exporter)
	e.str("OTLP_ENDPOINT", &cfg.Trace.OTLPEndpoint)
	e.str("OTEL_SERVICE_NAME", &cfg.Trace.ServiceName)
	if e.err != nil {
		return Config{}, e.err
	}
	if _, err := cfg.Limits(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	switch cfg.Trace.Exporter {
	case "none", "stdout", "otlp":
	default:
		return Config{}, fmt.Errorf("config: unknown trace exporter %q", cfg.Trace.Exporter)
	}
	return cfg, nil
}

// Limits converts the search section into request limits.
func (c Config) Limits() (journey.Limits, error) {
	exp, err := journey.ParseExpansionPolicy(c.Search.Expansion)
	if err != nil {
		return journey.Limits{}, err
	}
	stop, err := journey.ParseStopPolicy(c.Search.Stop)
	if err != nil {
		return journey.Limits{}, err
	}
	return journey.Limits{
		MaxJourneys:    c.Search.MaxJourneys,
		MaxChanges:     c.Search.MaxChanges,
		MaxInitialWait: c.Search.MaxInitialWait.Duration,
		MaxDuration:    c.Search.MaxDuration.Duration,
		Expansion:      exp,
		Stop:           stop,
	}, nil
}

// env applies overrides, keeping the first parse error.
type env struct {
	get func(string) string
	err error
}

func (e *env) str(key string, dst *string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e *env) integer(key string, dst *int) {
	e.parse(key, func(v string) error {
		n, err := strconv.Atoi(v)
		*dst = n
		return err
	})
}

func (e *env) float(key string, dst *float64) {
	e.parse(key, func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		*dst = f
		return err
	})
}

func (e *env) duration(key string, dst *Duration) {
	e.parse(key, func(v string) error { return dst.UnmarshalText([]byte(v)) })
}

func (e *env) parse(key string, set func(string) error) {
	v := e.get(key)
	if v == "" || e.err != nil {
		return
	}
	if err := set(v); err != nil {
		e.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
}
