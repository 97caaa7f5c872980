package dimse

import (
	"log/slog"
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
)

// Direction of a traced unit.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Received {
		return "received"
	}
	return "sent"
}

// Tracer observes every command and data unit that crosses an association.
// raw holds the encoded bytes; it is nil for data units streamed to or from
// a file.
type Tracer interface {
	Command(dir Direction, pcid byte, msg Message, raw []byte)
	Data(dir Direction, pcid byte, size int64, raw []byte)
}

// Config holds engine settings. The zero value is usable.
type Config struct {
	Logger *slog.Logger
	Tracer Tracer
	// DataEncoding is applied to data sets the engine encodes itself.
	DataEncoding dicom.EncodeOptions
	// CancelPollTimeout bounds the wait for a C-CANCEL-RQ between provider
	// responses. Zero polls without waiting.
	CancelPollTimeout time.Duration
	// WaitPollInterval is the slice WaitReady blocks on the main association
	// before looking at the other sources again.
	WaitPollInterval time.Duration
}

// Engine runs DIMSE exchanges over associations it borrows from the caller.
// It starts no goroutines and keeps no per-association state.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WaitPollInterval <= 0 {
		cfg.WaitPollInterval = 100 * time.Millisecond
	}
	return &Engine{cfg: cfg, logger: cfg.Logger}
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

func (e *Engine) traceCommand(dir Direction, pcid byte, msg Message, raw []byte) {
	if e.cfg.Tracer != nil {
		e.cfg.Tracer.Command(dir, pcid, msg, raw)
	}
}

func (e *Engine) traceData(dir Direction, pcid byte, size int64, raw []byte) {
	if e.cfg.Tracer != nil {
		e.cfg.Tracer.Data(dir, pcid, size, raw)
	}
}
