package dimse

import (
	"time"

	"github.com/caio-sobreiro/dimsenet/types"
)

// BlockMode selects how reads wait for the peer.
type BlockMode int

const (
	// Blocking waits for data, forever when the timeout is zero.
	Blocking BlockMode = iota
	// NonBlocking returns NoDataAvailable when nothing is queued.
	NonBlocking
)

func (m BlockMode) String() string {
	if m == NonBlocking {
		return "non-blocking"
	}
	return "blocking"
}

// PDV is one presentation data value as carried in a P-DATA-TF PDU.
type PDV struct {
	ContextID byte
	Data      []byte
	Command   bool
	Last      bool
}

// Association is the established upper layer connection the engine drives.
// The engine never opens, releases or aborts it.
//
// ReadPDV reports a timeout as NoDataAvailable, an A-RELEASE-RQ as
// PeerRequestedRelease, an A-ABORT as PeerAbortedAssociation and transport
// failures as ReadPDVFailed.
type Association interface {
	PresentationContexts() []types.PresentationContext
	// MaxPDVSize is the largest PDV payload the peer accepts.
	MaxPDVSize() int
	// NextMessageID returns a fresh non-zero message id.
	NextMessageID() uint16
	WritePDV(pdv PDV) error
	ReadPDV(mode BlockMode, timeout time.Duration) (PDV, error)
	// DataWaiting reports whether ReadPDV would return without blocking
	// within timeout, either with a PDV or with the condition that ended
	// the association.
	DataWaiting(timeout time.Duration) bool
}

// FindContext returns the presentation context with id pcid.
func FindContext(assoc Association, pcid byte) (types.PresentationContext, bool) {
	for _, pc := range assoc.PresentationContexts() {
		if pc.ID == pcid {
			return pc, true
		}
	}
	return types.PresentationContext{}, false
}

// FindAcceptedContext returns the first accepted context for abstractSyntax,
// preferring transferSyntax when it is not empty.
func FindAcceptedContext(assoc Association, abstractSyntax, transferSyntax string) (byte, bool) {
	var found byte
	for _, pc := range assoc.PresentationContexts() {
		if pc.AbstractSyntax != abstractSyntax || !pc.Accepted() {
			continue
		}
		if transferSyntax == "" || pc.TransferSyntax == transferSyntax {
			return pc.ID, true
		}
		if found == 0 {
			found = pc.ID
		}
	}
	return found, found != 0
}
