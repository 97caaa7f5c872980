// Package trace records DIMSE traffic to a size-rotated log file. A Tracer
// plugs into dimse.Config.Tracer.
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/caio-sobreiro/dimsenet/dimse"
)

// Config selects the trace destination.
type Config struct {
	// File is rotated by size. Ignored when Output is set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output replaces the rotating file.
	Output io.Writer
	// DumpDir, when set, receives one file of raw bytes per traced unit.
	DumpDir string
}

// Tracer writes one JSON record per command or data unit.
type Tracer struct {
	log     *logrus.Logger
	closer  io.Closer
	dumpDir string
	seq     atomic.Uint64
}

var _ dimse.Tracer = (*Tracer)(nil)

// New opens the trace destination.
func New(cfg Config) (*Tracer, error) {
	out := cfg.Output
	var closer io.Closer
	if out == nil {
		if cfg.File == "" {
			return nil, fmt.Errorf("trace: no file or output given")
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out, closer = rotating, rotating
	}
	if cfg.DumpDir != "" {
		if err := os.MkdirAll(cfg.DumpDir, 0o755); err != nil {
			return nil, fmt.Errorf("trace: create dump directory: %w", err)
		}
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)
	return &Tracer{log: log, closer: closer, dumpDir: cfg.DumpDir}, nil
}

// Command records a command set.
func (t *Tracer) Command(dir dimse.Direction, pcid byte, msg dimse.Message, raw []byte) {
	fields := logrus.Fields{
		"direction":  dir.String(),
		"context_id": pcid,
		"command":    msg.Command().String(),
		"bytes":      len(raw),
	}
	if path := t.dump(dir, pcid, "command", raw); path != "" {
		fields["dump"] = path
	}
	t.log.WithFields(fields).Info(msg.String())
}

// Data records a data set. raw is nil when the data set was streamed from
// or to a file.
func (t *Tracer) Data(dir dimse.Direction, pcid byte, size int64, raw []byte) {
	fields := logrus.Fields{
		"direction":  dir.String(),
		"context_id": pcid,
		"bytes":      size,
	}
	if path := t.dump(dir, pcid, "data", raw); path != "" {
		fields["dump"] = path
	}
	t.log.WithFields(fields).Info("data set")
}

// dump saves raw under the dump directory and returns the file name.
func (t *Tracer) dump(dir dimse.Direction, pcid byte, kind string, raw []byte) string {
	if t.dumpDir == "" || raw == nil {
		return ""
	}
	name := fmt.Sprintf("%06d-%s-pc%d-%s.bin", t.seq.Add(1), dir, pcid, kind)
	path := filepath.Join(t.dumpDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.log.WithError(err).Warn("dump failed")
		return ""
	}
	return path
}

// Close closes the rotating file, if any.
func (t *Tracer) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
