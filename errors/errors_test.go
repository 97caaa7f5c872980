package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAssociationError(t *testing.T) {
	err := NewAssociationError(RejectSourceServiceUser, RejectReasonCalledAETitleNotRecognized, "AE title mismatch")

	if err.Transient() {
		t.Error("NewAssociationError should build a permanent rejection")
	}
	if !errors.Is(fmt.Errorf("connect: %w", err), ErrAssociationRejected) {
		t.Error("wrapped AssociationError should match ErrAssociationRejected")
	}
	want := "association rejected (permanent): AE title mismatch (source: service-user, reason: called-ae-title-not-recognized)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAssociationErrorReasonString(t *testing.T) {
	tests := []struct {
		source AssociationRejectSource
		reason AssociationRejectReason
		want   string
	}{
		{RejectSourceServiceUser, RejectReasonNoReasonGiven, "no-reason-given"},
		{RejectSourceServiceUser, RejectReasonApplicationContextNotSupported, "application-context-not-supported"},
		{RejectSourceServiceUser, RejectReasonCallingAETitleNotRecognized, "calling-ae-title-not-recognized"},
		{RejectSourceServiceUser, 0x05, "unknown"},
		{RejectSourceServiceProvider, 0x02, "protocol-version-not-supported"},
		{RejectSourcePresentationProvider, 0x01, "temporary-congestion"},
		{RejectSourcePresentationProvider, 0x02, "local-limit-exceeded"},
		{RejectSourcePresentationProvider, 0x07, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.source, tt.reason), func(t *testing.T) {
			err := &AssociationError{Result: 0x02, Source: tt.source, Reason: tt.reason}
			if got := err.ReasonString(); got != tt.want {
				t.Errorf("ReasonString() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(err.Error(), "transient") {
				t.Errorf("Error() = %q, want a transient rejection", err.Error())
			}
		})
	}
}

func TestAssociationRejectSourceString(t *testing.T) {
	for source, want := range map[AssociationRejectSource]string{
		RejectSourceServiceUser:          "service-user",
		RejectSourceServiceProvider:      "service-provider",
		RejectSourcePresentationProvider: "presentation-provider",
		0xFF:                             "unknown",
	} {
		if got := source.String(); got != want {
			t.Errorf("%d.String() = %v, want %v", byte(source), got, want)
		}
	}
}

func TestDIMSEError(t *testing.T) {
	tests := []struct {
		name   string
		status uint16
		want   statusClass
	}{
		{"Success", 0x0000, classSuccess},
		{"Pending", 0xFF00, classPending},
		{"PendingWarning", 0xFF01, classPending},
		{"Cancel", 0xFE00, classCancel},
		{"StoreWarning", 0xB007, classWarning},
		{"AttributeListWarning", 0x0107, classWarning},
		{"Refused", 0xA700, classFailure},
		{"Failure", 0xC000, classFailure},
		{"NoSuchInstance", 0x0112, classFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDIMSEError("C-STORE", tt.status, "test error")
			got := map[statusClass]bool{
				classSuccess: err.IsSuccess(),
				classPending: err.IsPending(),
				classWarning: err.IsWarning(),
				classCancel:  err.IsCancel(),
				classFailure: err.IsFailure(),
			}
			for class, set := range got {
				if set != (class == tt.want) {
					t.Errorf("status 0x%04X: class %d reported %v", tt.status, class, set)
				}
			}
		})
	}

	if got := NewDIMSEError("C-FIND", 0xA900, "bad identifier").Error(); got != "C-FIND status 0xA900: bad identifier" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNetworkError(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewNetworkError("dial", inner)

	if !errors.Is(err, inner) {
		t.Error("NetworkError should unwrap to the inner error")
	}
	if got := err.Error(); got != "dial: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPDUError(t *testing.T) {
	err := NewPDUError(0x04, "invalid PDU length")

	if !errors.Is(err, ErrInvalidPDU) {
		t.Error("PDUError should match ErrInvalidPDU")
	}
	if got := err.Error(); got != "PDU type 0x04: invalid PDU length" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAbortError(t *testing.T) {
	tests := []struct {
		source, reason byte
		want           string
	}{
		{0x00, 0x00, "association aborted by service-user"},
		{0x02, 0x02, "association aborted by service-provider: unexpected-PDU"},
		{0x02, 0x06, "association aborted by service-provider: invalid-PDU-parameter-value"},
		{0x02, 0x09, "association aborted by service-provider: 0x09"},
		{0x01, 0x00, "association aborted (source 0x01, reason 0x00)"},
	}

	for _, tt := range tests {
		if got := NewAbortError(tt.source, tt.reason).Error(); got != tt.want {
			t.Errorf("AbortError{%d, %d} = %q, want %q", tt.source, tt.reason, got, tt.want)
		}
	}
}
