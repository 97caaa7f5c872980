package dimse

import (
	"errors"
	"io"
	"log/slog"
	"time"

	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// pipeAssoc is one end of an in-memory association. Each end must only be
// driven by one goroutine.
type pipeAssoc struct {
	contexts []types.PresentationContext
	maxPDV   int
	in       <-chan PDV
	out      chan<- PDV
	peeked   *PDV
	nextID   uint16
	written  []PDV
}

func newPipe(maxPDV int, contexts []types.PresentationContext) (*pipeAssoc, *pipeAssoc) {
	ab := make(chan PDV, 8192)
	ba := make(chan PDV, 8192)
	a := &pipeAssoc{contexts: contexts, maxPDV: maxPDV, in: ba, out: ab}
	b := &pipeAssoc{contexts: contexts, maxPDV: maxPDV, in: ab, out: ba}
	return a, b
}

func (p *pipeAssoc) PresentationContexts() []types.PresentationContext { return p.contexts }
func (p *pipeAssoc) MaxPDVSize() int                                   { return p.maxPDV }

func (p *pipeAssoc) NextMessageID() uint16 {
	p.nextID++
	if p.nextID == 0 {
		p.nextID = 1
	}
	return p.nextID
}

func (p *pipeAssoc) WritePDV(pdv PDV) error {
	pdv.Data = append([]byte(nil), pdv.Data...)
	p.written = append(p.written, pdv)
	select {
	case p.out <- pdv:
		return nil
	default:
		return errors.New("pipe full")
	}
}

func (p *pipeAssoc) received(pdv PDV, ok bool) (PDV, error) {
	if !ok {
		return PDV{}, dimseerrors.New(dimseerrors.PeerAbortedAssociation, "pipe closed")
	}
	return pdv, nil
}

func (p *pipeAssoc) ReadPDV(mode BlockMode, timeout time.Duration) (PDV, error) {
	if p.peeked != nil {
		pdv := *p.peeked
		p.peeked = nil
		return pdv, nil
	}
	if mode == NonBlocking {
		select {
		case pdv, ok := <-p.in:
			return p.received(pdv, ok)
		default:
			return PDV{}, dimseerrors.New(dimseerrors.NoDataAvailable, "no PDV queued")
		}
	}
	if timeout <= 0 {
		pdv, ok := <-p.in
		return p.received(pdv, ok)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case pdv, ok := <-p.in:
		return p.received(pdv, ok)
	case <-t.C:
		return PDV{}, dimseerrors.New(dimseerrors.NoDataAvailable, "no PDV within %s", timeout)
	}
}

func (p *pipeAssoc) DataWaiting(timeout time.Duration) bool {
	if p.peeked != nil {
		return true
	}
	mode := Blocking
	if timeout <= 0 {
		mode = NonBlocking
	}
	pdv, err := p.ReadPDV(mode, timeout)
	if err != nil {
		// a closed pipe is readable: ReadPDV reports the closure
		return !errors.Is(err, dimseerrors.ErrNoDataAvailable)
	}
	p.peeked = &pdv
	return true
}

func (p *pipeAssoc) close() {
	close(p.out)
}

const (
	pcVerification byte = 1
	pcCT           byte = 3
	pcFind         byte = 5
	pcMove         byte = 7
	pcGet          byte = 9
	pcCommitment   byte = 11
	pcRejected     byte = 13
	pcBigEndian    byte = 15
)

func testContexts() []types.PresentationContext {
	return []types.PresentationContext{
		{ID: pcVerification, AbstractSyntax: types.VerificationSOPClass, TransferSyntax: types.ImplicitVRLittleEndian},
		{ID: pcCT, AbstractSyntax: types.CTImageStorage, TransferSyntax: types.ExplicitVRLittleEndian},
		{ID: pcFind, AbstractSyntax: types.StudyRootQueryRetrieveInformationModelFind, TransferSyntax: types.ImplicitVRLittleEndian},
		{ID: pcMove, AbstractSyntax: types.StudyRootQueryRetrieveInformationModelMove, TransferSyntax: types.ImplicitVRLittleEndian},
		{ID: pcGet, AbstractSyntax: types.StudyRootQueryRetrieveInformationModelGet, TransferSyntax: types.ImplicitVRLittleEndian},
		{ID: pcCommitment, AbstractSyntax: types.StorageCommitmentPushModelSOPClass, TransferSyntax: types.ImplicitVRLittleEndian},
		{ID: pcRejected, Result: types.PresentationAbstractSyntaxRejected, AbstractSyntax: types.MRImageStorage},
		{ID: pcBigEndian, AbstractSyntax: types.SecondaryCaptureImageStorage, TransferSyntax: types.ExplicitVRBigEndian},
	}
}

func testEngine() *Engine {
	return New(Config{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		WaitPollInterval: 5 * time.Millisecond,
	})
}

// goProvider runs fn on its own goroutine and returns a channel with its
// result.
func goProvider(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}
