package pdu

import (
	"github.com/caio-sobreiro/dimsenet/types"
)

// AcceptPolicy decides the result of one proposed presentation context. It
// returns the accepted transfer syntax, or a rejection result with an empty
// syntax.
type AcceptPolicy func(pc ProposedContext) (transferSyntax string, result byte)

// SyntaxPolicy accepts the abstract syntaxes for which accept returns true,
// choosing the first proposed transfer syntax the dicom codec can handle.
func SyntaxPolicy(accept func(abstractSyntax string) bool) AcceptPolicy {
	return func(pc ProposedContext) (string, byte) {
		if !accept(pc.AbstractSyntax) {
			return "", types.PresentationAbstractSyntaxRejected
		}
		for _, ts := range pc.TransferSyntaxes {
			if types.IsSupportedTransferSyntax(ts) {
				return ts, types.PresentationAcceptance
			}
		}
		return "", types.PresentationTransferSyntaxRejected
	}
}

// DefaultAcceptPolicy accepts every SOP class the services package knows
// how to serve.
var DefaultAcceptPolicy = SyntaxPolicy(func(uid string) bool {
	return types.SOPClassKind(uid) != types.ServiceKindUnknown
})

// SubOperationPolicy accepts what a C-MOVE destination needs: verification
// and storage.
var SubOperationPolicy = SyntaxPolicy(func(uid string) bool {
	return uid == types.VerificationSOPClass || types.IsStorageSOPClass(uid)
})

// negotiate applies policy to every proposed context.
func negotiate(proposed []ProposedContext, policy AcceptPolicy) []types.PresentationContext {
	out := make([]types.PresentationContext, 0, len(proposed))
	for _, p := range proposed {
		ts, result := policy(p)
		if result != types.PresentationAcceptance {
			ts = ""
		} else if ts == "" {
			result = types.PresentationTransferSyntaxRejected
		}
		out = append(out, types.PresentationContext{
			ID:             p.ID,
			Result:         result,
			AbstractSyntax: p.AbstractSyntax,
			TransferSyntax: ts,
		})
	}
	return out
}
