// Package config loads the dimsekit YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
)

// Defaults applied by Load and Default.
const (
	DefaultAETitle       = "DIMSEKIT"
	DefaultListenAddress = ":11112"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxPDULength  = 16384
)

// Config is the file layout.
type Config struct {
	// AETitle is the local application entity title.
	AETitle string `yaml:"ae_title"`
	// Listen is the address the serve command and C-MOVE sub-association
	// listeners bind.
	Listen string `yaml:"listen"`
	// Peers maps AE titles to host:port. The serve command resolves C-MOVE
	// destinations with it; SCU commands accept a peer name as target.
	Peers        map[string]string `yaml:"peers,omitempty"`
	MaxPDULength uint32            `yaml:"max_pdu_length,omitempty"`
	Timeouts     Timeouts          `yaml:"timeouts"`
	Engine       Engine            `yaml:"engine"`
	Trace        Trace             `yaml:"trace"`
	Storage      Storage           `yaml:"storage"`
}

// Timeouts are YAML durations such as "30s".
type Timeouts struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
}

// Engine holds the DIMSE engine settings.
type Engine struct {
	CancelPollTimeout time.Duration `yaml:"cancel_poll_timeout,omitempty"`
	WaitPollInterval  time.Duration `yaml:"wait_poll_interval,omitempty"`
	// GroupLength is one of recalc (default), asis, add and remove.
	GroupLength              string `yaml:"group_length,omitempty"`
	UndefinedLengthSequences bool   `yaml:"undefined_length_sequences,omitempty"`
}

var groupLengthPolicies = map[string]dicom.GroupLengthPolicy{
	"":       dicom.GroupLengthRecalc,
	"recalc": dicom.GroupLengthRecalc,
	"asis":   dicom.GroupLengthAsIs,
	"add":    dicom.GroupLengthAdd,
	"remove": dicom.GroupLengthRemove,
}

// Trace configures the DIMSE trace file. An empty File disables tracing.
type Trace struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	// DumpDir receives the raw bytes of every traced unit.
	DumpDir string `yaml:"dump_dir,omitempty"`
}

// Storage configures where the serve command keeps received instances.
type Storage struct {
	// Directory is loaded at startup and receives C-STOREs. Empty keeps
	// the archive in memory.
	Directory string `yaml:"directory,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AETitle == "" {
		c.AETitle = DefaultAETitle
	}
	if c.Listen == "" {
		c.Listen = DefaultListenAddress
	}
	if c.MaxPDULength == 0 {
		c.MaxPDULength = DefaultMaxPDULength
	}
	if c.Timeouts.Connect == 0 {
		c.Timeouts.Connect = DefaultTimeout
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = DefaultTimeout
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = DefaultTimeout
	}
	if c.Trace.File != "" && c.Trace.MaxSizeMB == 0 {
		c.Trace.MaxSizeMB = 10
	}
}

// Validate checks values Load cannot default.
func (c *Config) Validate() error {
	if len(c.AETitle) > 16 {
		return fmt.Errorf("ae_title %q is longer than 16 characters", c.AETitle)
	}
	if c.Timeouts.Connect < 0 || c.Timeouts.Read < 0 || c.Timeouts.Write < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if _, ok := groupLengthPolicies[c.Engine.GroupLength]; !ok {
		return fmt.Errorf("engine.group_length %q is not one of recalc, asis, add, remove", c.Engine.GroupLength)
	}
	if c.Engine.CancelPollTimeout < 0 || c.Engine.WaitPollInterval < 0 {
		return fmt.Errorf("engine poll durations must be >= 0")
	}
	for ae, addr := range c.Peers {
		if ae == "" || len(ae) > 16 {
			return fmt.Errorf("peers: invalid AE title %q", ae)
		}
		if !strings.Contains(addr, ":") {
			return fmt.Errorf("peers[%s]: address %q is not host:port", ae, addr)
		}
	}
	return nil
}

// Peer resolves target, either a configured AE title or a host:port
// address, into the called AE title and the address to dial.
func (c *Config) Peer(target string) (aeTitle, address string, err error) {
	if addr, ok := c.Peers[target]; ok {
		return target, addr, nil
	}
	if strings.Contains(target, ":") {
		return "", target, nil
	}
	return "", "", fmt.Errorf("unknown peer %q", target)
}

// EngineConfig turns the engine section into a dimse.Config.
func (c *Config) EngineConfig() dimse.Config {
	return dimse.Config{
		CancelPollTimeout: c.Engine.CancelPollTimeout,
		WaitPollInterval:  c.Engine.WaitPollInterval,
		DataEncoding: dicom.EncodeOptions{
			GroupLength:              groupLengthPolicies[c.Engine.GroupLength],
			UndefinedLengthSequences: c.Engine.UndefinedLengthSequences,
		},
	}
}
