package types

// PDU type constants
const (
	TypeAssociateRQ = 0x01
	TypeAssociateAC = 0x02
	TypeAssociateRJ = 0x03
	TypePDataTF     = 0x04
	TypeReleaseRQ   = 0x05
	TypeReleaseRP   = 0x06
	TypeAbort       = 0x07
)

// Presentation context negotiation results.
const (
	PresentationAcceptance             byte = 0x00
	PresentationUserRejection          byte = 0x01
	PresentationProviderRejection      byte = 0x02
	PresentationAbstractSyntaxRejected byte = 0x03
	PresentationTransferSyntaxRejected byte = 0x04
)

// PresentationContext represents a negotiated presentation context
type PresentationContext struct {
	ID             byte
	Result         byte
	AbstractSyntax string
	TransferSyntax string
}

// Accepted reports whether the context may carry messages.
func (pc PresentationContext) Accepted() bool {
	return pc.Result == PresentationAcceptance && pc.TransferSyntax != ""
}
