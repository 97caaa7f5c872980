package dimse

import (
	"time"

	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
)

// Source names what WaitReady found ready.
type Source int

const (
	SourceNone Source = iota
	SourceSubAssociation
	SourceListener
	SourceMain
)

func (s Source) String() string {
	switch s {
	case SourceSubAssociation:
		return "sub-association"
	case SourceListener:
		return "listener"
	case SourceMain:
		return "main"
	}
	return "none"
}

// Listener is a network endpoint on which sub-associations arrive.
type Listener interface {
	// Pending reports whether an incoming association can be accepted
	// within timeout.
	Pending(timeout time.Duration) bool
}

// SubOpHandler services retrieve sub-operations for a C-MOVE user.
// HandleSubOperation is called once per ready cycle with the listener and
// the sub-association currently open, which is nil when none is. It returns
// the sub-association to keep using: a newly accepted one, the same one, or
// nil once it has been released or aborted.
//
// AbortSubOperation is called with the sub-association still open when the
// C-MOVE ends with an error, after which it is no longer used.
type SubOpHandler interface {
	HandleSubOperation(listener Listener, sub Association) (Association, error)
	AbortSubOperation(sub Association)
}

// WaitReady blocks until one of the open sub-association, the listener or
// the main association has something to read, checking them in that order.
// listener and sub may be nil. An association that has failed counts as
// ready, so the following read reports the failure. A zero timeout waits
// forever; when the bound passes SourceNone is returned with a
// NoDataAvailable condition.
func (e *Engine) WaitReady(main Association, listener Listener, sub Association, timeout time.Duration) (Source, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if sub != nil && sub.DataWaiting(0) {
			return SourceSubAssociation, nil
		}
		if listener != nil && listener.Pending(0) {
			return SourceListener, nil
		}

		slice := e.cfg.WaitPollInterval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return SourceNone, dimseerrors.New(dimseerrors.NoDataAvailable, "nothing ready within %s", timeout)
			}
			if left < slice {
				slice = left
			}
		}
		if main.DataWaiting(slice) {
			return SourceMain, nil
		}
	}
}
