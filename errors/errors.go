// Package errors provides the DIMSE condition taxonomy and the association-level
// error types returned by the network layers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is.
var (
	ErrConnectionClosed    = errors.New("dicom: connection closed")
	ErrAssociationRejected = errors.New("dicom: association rejected")
	ErrInvalidPDU          = errors.New("dicom: invalid PDU")
)

// AssociationRejectSource is the source field of an A-ASSOCIATE-RJ.
type AssociationRejectSource byte

const (
	RejectSourceUnknown              AssociationRejectSource = 0x00
	RejectSourceServiceUser          AssociationRejectSource = 0x01
	RejectSourceServiceProvider      AssociationRejectSource = 0x02 // ACSE related
	RejectSourcePresentationProvider AssociationRejectSource = 0x03
)

func (s AssociationRejectSource) String() string {
	switch s {
	case RejectSourceServiceUser:
		return "service-user"
	case RejectSourceServiceProvider:
		return "service-provider"
	case RejectSourcePresentationProvider:
		return "presentation-provider"
	}
	return "unknown"
}

// AssociationRejectReason is the reason/diag field of an A-ASSOCIATE-RJ.
// Its meaning depends on the source.
type AssociationRejectReason byte

const (
	RejectReasonUnknown                        AssociationRejectReason = 0x00
	RejectReasonNoReasonGiven                  AssociationRejectReason = 0x01
	RejectReasonApplicationContextNotSupported AssociationRejectReason = 0x02
	RejectReasonCallingAETitleNotRecognized    AssociationRejectReason = 0x03
	RejectReasonCalledAETitleNotRecognized     AssociationRejectReason = 0x07
)

// String names r as a service-user reason.
func (r AssociationRejectReason) String() string {
	if name, ok := userRejectReasons[r]; ok {
		return name
	}
	return "unknown"
}

var userRejectReasons = map[AssociationRejectReason]string{
	RejectReasonNoReasonGiven:                  "no-reason-given",
	RejectReasonApplicationContextNotSupported: "application-context-not-supported",
	RejectReasonCallingAETitleNotRecognized:    "calling-ae-title-not-recognized",
	RejectReasonCalledAETitleNotRecognized:     "called-ae-title-not-recognized",
}

var providerRejectReasons = map[AssociationRejectSource]map[AssociationRejectReason]string{
	RejectSourceServiceProvider: {
		0x01: "no-reason-given",
		0x02: "protocol-version-not-supported",
	},
	RejectSourcePresentationProvider: {
		0x01: "temporary-congestion",
		0x02: "local-limit-exceeded",
	},
}

// AssociationError is an A-ASSOCIATE-RJ, sent or received.
type AssociationError struct {
	Result byte // 1 permanent, 2 transient
	Reason AssociationRejectReason
	Source AssociationRejectSource
	Msg    string
}

// NewAssociationError builds a permanent rejection.
func NewAssociationError(source AssociationRejectSource, reason AssociationRejectReason, msg string) *AssociationError {
	return &AssociationError{Result: 0x01, Source: source, Reason: reason, Msg: msg}
}

// Transient reports whether the peer suggested retrying later.
func (e *AssociationError) Transient() bool {
	return e.Result == 0x02
}

// ReasonString interprets Reason in the context of Source.
func (e *AssociationError) ReasonString() string {
	if names, ok := providerRejectReasons[e.Source]; ok {
		if name, ok := names[e.Reason]; ok {
			return name
		}
		return "unknown"
	}
	return e.Reason.String()
}

func (e *AssociationError) Error() string {
	kind := "permanent"
	if e.Transient() {
		kind = "transient"
	}
	return fmt.Sprintf("association rejected (%s): %s (source: %s, reason: %s)",
		kind, e.Msg, e.Source, e.ReasonString())
}

// Is lets errors.Is(err, ErrAssociationRejected) match any rejection.
func (e *AssociationError) Is(target error) bool {
	return target == ErrAssociationRejected
}

// statusClass is a service-independent approximation of dimse.Classify.
type statusClass int

const (
	classSuccess statusClass = iota
	classPending
	classWarning
	classCancel
	classFailure
)

func classify(status uint16) statusClass {
	switch {
	case status == 0x0000:
		return classSuccess
	case status == 0xFE00:
		return classCancel
	case status&0xFF00 == 0xFF00:
		return classPending
	case status&0xF000 == 0xB000, status == 0x0001, status == 0x0107, status == 0x0116:
		return classWarning
	}
	return classFailure
}

// DIMSEError reports a DIMSE operation that completed on the wire but
// carried a non-success status.
type DIMSEError struct {
	Status    uint16
	Operation string
	Msg       string
}

// NewDIMSEError wraps the final status of operation.
func NewDIMSEError(operation string, status uint16, msg string) *DIMSEError {
	return &DIMSEError{Operation: operation, Status: status, Msg: msg}
}

func (e *DIMSEError) Error() string {
	return fmt.Sprintf("%s status 0x%04X: %s", e.Operation, e.Status, e.Msg)
}

func (e *DIMSEError) IsSuccess() bool { return classify(e.Status) == classSuccess }
func (e *DIMSEError) IsPending() bool { return classify(e.Status) == classPending }
func (e *DIMSEError) IsWarning() bool { return classify(e.Status) == classWarning }
func (e *DIMSEError) IsCancel() bool  { return classify(e.Status) == classCancel }
func (e *DIMSEError) IsFailure() bool { return classify(e.Status) == classFailure }

// NetworkError wraps a transport failure with the operation that hit it.
type NetworkError struct {
	Op  string
	Err error
}

func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PDUError is a malformed or out-of-place PDU.
type PDUError struct {
	PDUType byte
	Msg     string
}

func NewPDUError(pduType byte, msg string) *PDUError {
	return &PDUError{PDUType: pduType, Msg: msg}
}

func (e *PDUError) Error() string {
	return fmt.Sprintf("PDU type 0x%02X: %s", e.PDUType, e.Msg)
}

// Is lets errors.Is(err, ErrInvalidPDU) match any PDU error.
func (e *PDUError) Is(target error) bool {
	return target == ErrInvalidPDU
}

var abortReasons = map[byte]string{
	0x00: "reason-not-specified",
	0x01: "unrecognized-PDU",
	0x02: "unexpected-PDU",
	0x04: "unrecognized-PDU-parameter",
	0x05: "unexpected-PDU-parameter",
	0x06: "invalid-PDU-parameter-value",
}

// AbortError is a received A-ABORT.
type AbortError struct {
	Source byte
	Reason byte
}

func NewAbortError(source, reason byte) *AbortError {
	return &AbortError{Source: source, Reason: reason}
}

func (e *AbortError) Error() string {
	switch e.Source {
	case 0x00:
		return "association aborted by service-user"
	case 0x02:
		reason, ok := abortReasons[e.Reason]
		if !ok {
			reason = fmt.Sprintf("0x%02X", e.Reason)
		}
		return "association aborted by service-provider: " + reason
	}
	return fmt.Sprintf("association aborted (source 0x%02X, reason 0x%02X)", e.Source, e.Reason)
}
