package errors

import (
	"errors"
	"fmt"
)

// Kind identifies a DIMSE condition. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	NoDataAvailable
	ReadPDVFailed
	ReceiveFailed
	PeerRequestedRelease
	PeerAbortedAssociation
	InvalidPresentationContextID
	UnsupportedTransferSyntax
	UnexpectedPDVType
	BadCommandType
	BuildFailed
	ParseFailed
	BadMessage
	BadData
	UnexpectedResponse
	UnexpectedRequest
	NullKey
	OutOfResources
	SendFailed
)

var kindNames = map[Kind]string{
	NoDataAvailable:              "no data available",
	ReadPDVFailed:                "read PDV failed",
	ReceiveFailed:                "receive failed",
	PeerRequestedRelease:         "peer requested release",
	PeerAbortedAssociation:       "peer aborted association",
	InvalidPresentationContextID: "invalid presentation context id",
	UnsupportedTransferSyntax:    "unsupported transfer syntax",
	UnexpectedPDVType:            "unexpected PDV type",
	BadCommandType:               "bad command type",
	BuildFailed:                  "build failed",
	ParseFailed:                  "parse failed",
	BadMessage:                   "bad message",
	BadData:                      "bad data",
	UnexpectedResponse:           "unexpected response",
	UnexpectedRequest:            "unexpected request",
	NullKey:                      "null key",
	OutOfResources:               "out of resources",
	SendFailed:                   "send failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown condition"
}

// Condition is the error value returned by every DIMSE operation.
type Condition struct {
	Kind Kind
	Msg  string
	// Resource names the file or buffer involved in an OutOfResources condition.
	Resource string
	Err      error
}

func (c *Condition) Error() string {
	s := "dimse: " + c.Kind.String()
	if c.Msg != "" {
		s += ": " + c.Msg
	}
	if c.Resource != "" {
		s += " (" + c.Resource + ")"
	}
	if c.Err != nil {
		s += ": " + c.Err.Error()
	}
	return s
}

func (c *Condition) Unwrap() error {
	return c.Err
}

// Is matches any Condition of the same kind, so the Err* sentinels work with errors.Is.
func (c *Condition) Is(target error) bool {
	t, ok := target.(*Condition)
	if !ok {
		return false
	}
	return t.Kind == c.Kind && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNoDataAvailable              = &Condition{Kind: NoDataAvailable}
	ErrReadPDVFailed                = &Condition{Kind: ReadPDVFailed}
	ErrReceiveFailed                = &Condition{Kind: ReceiveFailed}
	ErrPeerRequestedRelease         = &Condition{Kind: PeerRequestedRelease}
	ErrPeerAbortedAssociation       = &Condition{Kind: PeerAbortedAssociation}
	ErrInvalidPresentationContextID = &Condition{Kind: InvalidPresentationContextID}
	ErrUnsupportedTransferSyntax    = &Condition{Kind: UnsupportedTransferSyntax}
	ErrUnexpectedPDVType            = &Condition{Kind: UnexpectedPDVType}
	ErrBadCommandType               = &Condition{Kind: BadCommandType}
	ErrBuildFailed                  = &Condition{Kind: BuildFailed}
	ErrParseFailed                  = &Condition{Kind: ParseFailed}
	ErrBadMessage                   = &Condition{Kind: BadMessage}
	ErrBadData                      = &Condition{Kind: BadData}
	ErrUnexpectedResponse           = &Condition{Kind: UnexpectedResponse}
	ErrUnexpectedRequest            = &Condition{Kind: UnexpectedRequest}
	ErrNullKey                      = &Condition{Kind: NullKey}
	ErrOutOfResources               = &Condition{Kind: OutOfResources}
	ErrSendFailed                   = &Condition{Kind: SendFailed}
)

// New creates a condition with a formatted message.
func New(kind Kind, format string, args ...any) *Condition {
	return &Condition{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a condition caused by err.
func Wrap(kind Kind, err error, format string, args ...any) *Condition {
	return &Condition{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NewOutOfResources reports a resource (usually a file path) that could not be used.
func NewOutOfResources(resource string, err error) *Condition {
	return &Condition{Kind: OutOfResources, Resource: resource, Err: err}
}

// KindOf returns the kind of the first Condition in err's chain.
func KindOf(err error) Kind {
	var c *Condition
	if errors.As(err, &c) {
		return c.Kind
	}
	return KindUnknown
}

// IsAssociationEnd reports whether err means the association can no longer be used.
func IsAssociationEnd(err error) bool {
	switch KindOf(err) {
	case PeerRequestedRelease, PeerAbortedAssociation, ReadPDVFailed:
		return true
	}
	return false
}
