// Package config handles orc.toml engine configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/engine"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "orc.toml"

//go:embed schema.cue
var schemaSource string

// Config represents an orc.toml configuration. Zero rates leave the choice
// to the orchestra header.
type Config struct {
	Rates       Rates       `toml:"rates" json:"rates"`
	Layout      Layout      `toml:"layout" json:"layout"`
	Performance Performance `toml:"performance" json:"performance"`
	Output      Output      `toml:"output" json:"output"`
	Server      Server      `toml:"server" json:"server"`

	// Dir is the directory containing the orc.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Rates override the orchestra's sr, kr and ksmps.
type Rates struct {
	Sr    float64 `toml:"sr" json:"sr"`
	Kr    float64 `toml:"kr" json:"kr"`
	Ksmps int     `toml:"ksmps" json:"ksmps"`
}

// Layout configures data-space layout.
type Layout struct {
	StrVarMaxLen int `toml:"str-var-max-len" json:"str-var-max-len"`
}

// Performance configures the engine.
type Performance struct {
	BeatMode       bool    `toml:"beat-mode" json:"beat-mode"`
	RealtimeEvents bool    `toml:"realtime-events" json:"realtime-events"`
	Cscore         bool    `toml:"cscore" json:"cscore"`
	HostYieldRate  float64 `toml:"host-yield-rate" json:"host-yield-rate"`
	Nchnls         int     `toml:"nchnls" json:"nchnls"`
	ZeroDBFS       float64 `toml:"zerodbfs" json:"zerodbfs"`
	MaxInstances   int     `toml:"max-instances" json:"max-instances"`
}

// Output configures files written by a run.
type Output struct {
	StatsDB    string `toml:"stats-db" json:"stats-db"`
	LayoutDump string `toml:"layout-dump" json:"layout-dump"`
}

// Server configures the engine service.
type Server struct {
	Listen string `toml:"listen" json:"listen"`
}

// Default returns the configuration used when no orc.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Layout.StrVarMaxLen == 0 {
		c.Layout.StrVarMaxLen = compiler.DefaultStrVarMaxLen
	}
	if c.Performance.HostYieldRate == 0 {
		c.Performance.HostYieldRate = engine.DefaultHostYieldRate
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "localhost:4410"
	}
}

// Load parses the orc.toml file in dir.
func Load(dir string) (*Config, error) {
	c, err := LoadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// LoadFile parses and validates a configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir = filepath.Dir(path)
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find an orc.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	return v.Validate(cue.Concrete(true))
}

// CompilerOptions returns the layout-engine options the configuration
// overrides.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		Sr:           c.Rates.Sr,
		Kr:           c.Rates.Kr,
		Ksmps:        float64(c.Rates.Ksmps),
		Nchnls:       c.Performance.Nchnls,
		ZeroDBFS:     c.Performance.ZeroDBFS,
		StrVarMaxLen: c.Layout.StrVarMaxLen,
	}
}

// EngineOptions returns the engine options the configuration sets. Score
// readers and sinks are left to the caller.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		BeatMode:      c.Performance.BeatMode,
		Realtime:      c.Performance.RealtimeEvents,
		Cscore:        c.Performance.Cscore,
		HostYieldRate: c.Performance.HostYieldRate,
		MaxInstances:  c.Performance.MaxInstances,
	}
}
