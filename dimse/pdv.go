package dimse

import (
	"time"

	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
)

// pdvBound is the usable payload per PDV: even, and never below two bytes.
func pdvBound(maxPDVSize int) int {
	b := maxPDVSize &^ 1
	if b < 2 {
		b = 2
	}
	return b
}

// pdvWriter splits one command or data unit into PDVs. A full buffer is held
// back until more bytes arrive so that Close can flag the real final PDV.
type pdvWriter struct {
	assoc   Association
	pcid    byte
	command bool
	bound   int
	buf     []byte
	total   int64
	count   int
	onPDV   func(total int64)
}

func newPDVWriter(assoc Association, pcid byte, command bool) *pdvWriter {
	bound := pdvBound(assoc.MaxPDVSize())
	return &pdvWriter{
		assoc:   assoc,
		pcid:    pcid,
		command: command,
		bound:   bound,
		buf:     make([]byte, 0, bound),
	}
}

func (w *pdvWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		if len(w.buf) == w.bound {
			if err := w.flush(false); err != nil {
				return n, err
			}
		}
		k := min(w.bound-len(w.buf), len(p))
		w.buf = append(w.buf, p[:k]...)
		p = p[k:]
		n += k
		w.total += int64(k)
	}
	return n, nil
}

func (w *pdvWriter) flush(last bool) error {
	pdv := PDV{ContextID: w.pcid, Data: w.buf, Command: w.command, Last: last}
	if err := w.assoc.WritePDV(pdv); err != nil {
		return dimseerrors.Wrap(dimseerrors.SendFailed, err, "writing PDV %d", w.count+1)
	}
	w.count++
	if w.onPDV != nil {
		w.onPDV(w.total)
	}
	w.buf = make([]byte, 0, w.bound)
	return nil
}

// Close writes the buffered tail as the last PDV of the unit. An empty unit
// still produces one empty last PDV.
func (w *pdvWriter) Close() error {
	if w.total%2 != 0 {
		return dimseerrors.New(dimseerrors.SendFailed, "odd unit length %d", w.total)
	}
	return w.flush(true)
}

// sendUnit writes data as one complete unit. Odd lengths are refused before
// anything reaches the association.
func sendUnit(assoc Association, pcid byte, command bool, data []byte, onPDV func(int64)) (int, error) {
	if len(data)%2 != 0 {
		return 0, dimseerrors.New(dimseerrors.SendFailed, "odd unit length %d", len(data))
	}
	w := newPDVWriter(assoc, pcid, command)
	w.onPDV = onPDV
	if _, err := w.Write(data); err != nil {
		return w.count, err
	}
	if err := w.Close(); err != nil {
		return w.count, err
	}
	return w.count, nil
}

type unitInfo struct {
	contextID byte
	bytes     int64
	pdvs      int
}

func phase(command bool) string {
	if command {
		return "command"
	}
	return "data"
}

// readUnit reads PDVs until the last one of a command or data unit and hands
// each fragment to sink. Once the first PDV is in, the rest of the unit is
// read in blocking mode. A failing sink stops receiving bytes but the unit is
// still drained so the association stays usable.
func readUnit(assoc Association, mode BlockMode, timeout time.Duration, command bool, sink func([]byte) error) (unitInfo, error) {
	var (
		info    unitInfo
		sinkErr error
	)
	for {
		pdv, err := assoc.ReadPDV(mode, timeout)
		if err != nil {
			return info, err
		}
		if pdv.Command != command {
			return info, dimseerrors.New(dimseerrors.UnexpectedPDVType, "expected %s PDV, got %s PDV", phase(command), phase(pdv.Command))
		}
		if info.pdvs == 0 {
			info.contextID = pdv.ContextID
		} else if pdv.ContextID != info.contextID {
			return info, dimseerrors.New(dimseerrors.InvalidPresentationContextID,
				"PDV on context %d inside a unit started on context %d", pdv.ContextID, info.contextID)
		}
		if len(pdv.Data)%2 != 0 {
			return info, dimseerrors.New(dimseerrors.ReceiveFailed, "odd PDV fragment length %d", len(pdv.Data))
		}
		info.pdvs++
		info.bytes += int64(len(pdv.Data))
		if sink != nil && sinkErr == nil {
			sinkErr = sink(pdv.Data)
		}
		if pdv.Last {
			return info, sinkErr
		}
		mode = Blocking
	}
}
