// Package config implements the configuration of ratchetctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	doubleratchet "github.com/stalker-loki/heraldratchet"
	rlog "github.com/stalker-loki/heraldratchet/internal/log"
)

const (
	defaultLogLevel = "NOTICE"
	defaultBackend  = BackendBolt
	defaultPath     = "ratchet.db"
)

// Storage backends.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stderr will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	if lCfg.Level == "" {
		lCfg.Level = defaultLogLevel
	}
	if _, err := rlog.LevelFromString(lCfg.Level); err != nil {
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = strings.ToUpper(lCfg.Level)
	return nil
}

// Ratchet is the ratchet configuration.
type Ratchet struct {
	// MaxSkip is the maximum number of message keys skipped by a single message.
	// Both parties should use the same value.
	MaxSkip *int
}

func (rCfg *Ratchet) fixup() error {
	if rCfg.MaxSkip == nil {
		n := doubleratchet.DefaultMaxSkip
		rCfg.MaxSkip = &n
	}
	if *rCfg.MaxSkip < 0 {
		return fmt.Errorf("config: Ratchet: MaxSkip %d is negative", *rCfg.MaxSkip)
	}
	return nil
}

// Options returns the ratchet options for the configuration.
func (rCfg *Ratchet) Options() []doubleratchet.Option {
	return []doubleratchet.Option{doubleratchet.WithMaxSkip(*rCfg.MaxSkip)}
}

// Storage is the key and session storage configuration.
type Storage struct {
	// Backend is one of "bolt", "sqlite" or "memory".
	Backend string

	// Path is the database file, ignored by the memory backend.
	Path string
}

func (sCfg *Storage) validate() error {
	if sCfg.Backend == "" {
		sCfg.Backend = defaultBackend
	}
	sCfg.Backend = strings.ToLower(sCfg.Backend)
	switch sCfg.Backend {
	case BackendBolt, BackendSQLite:
		if sCfg.Path == "" {
			sCfg.Path = defaultPath
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: Storage: Backend '%v' is invalid", sCfg.Backend)
	}
	return nil
}

// Metrics is the metrics configuration.
type Metrics struct {
	// Textfile, if set, receives the counters after every command.
	Textfile string
}

// Config is the top level ratchetctl configuration.
type Config struct {
	Logging *Logging
	Ratchet *Ratchet
	Storage *Storage
	Metrics *Metrics
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (c *Config) FixupAndValidate() error {
	// Handle missing sections if possible.
	if c.Logging == nil {
		l := defaultLogging
		c.Logging = &l
	}
	if c.Ratchet == nil {
		c.Ratchet = &Ratchet{}
	}
	if c.Storage == nil {
		c.Storage = &Storage{}
	}
	if c.Metrics == nil {
		c.Metrics = &Metrics{}
	}

	// Validate/fixup the various sections.
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Ratchet.fixup(); err != nil {
		return err
	}
	return c.Storage.validate()
}

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := new(Config)
	if err := cfg.FixupAndValidate(); err != nil {
		panic(err)
	}
	return cfg
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)

	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, errors.New("config: unknown keys: " + fmt.Sprint(undecoded))
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
