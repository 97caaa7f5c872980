package types

import "testing"

func TestResponseCommandFor(t *testing.T) {
	tests := []struct {
		request CommandField
		want    CommandField
	}{
		{CStoreRQ, CStoreRSP},
		{CGetRQ, CGetRSP},
		{CFindRQ, CFindRSP},
		{CMoveRQ, CMoveRSP},
		{CEchoRQ, CEchoRSP},
		{NEventReportRQ, NEventReportRSP},
		{NGetRQ, NGetRSP},
		{NSetRQ, NSetRSP},
		{NActionRQ, NActionRSP},
		{NCreateRQ, NCreateRSP},
		{NDeleteRQ, NDeleteRSP},
	}

	for _, tt := range tests {
		t.Run(tt.request.String(), func(t *testing.T) {
			got := ResponseCommandFor(tt.request)
			if got != tt.want {
				t.Errorf("ResponseCommandFor(%v) = %v, want %v", tt.request, got, tt.want)
			}
			if !got.IsResponse() {
				t.Errorf("%v.IsResponse() = false", got)
			}
		})
	}
}

func TestCommandFieldString(t *testing.T) {
	if got := CCancelRQ.String(); got != "C-CANCEL-RQ" {
		t.Errorf("String() = %v, want C-CANCEL-RQ", got)
	}
	if got := CommandField(0x1234).String(); got != "0x1234" {
		t.Errorf("String() = %v, want 0x1234", got)
	}
	if CommandField(0x1234).IsKnown() {
		t.Error("0x1234 should not be a known command")
	}
	if CCancelRQ.IsResponse() {
		t.Error("C-CANCEL-RQ is not a response")
	}
}

func TestQueryLevel(t *testing.T) {
	level, ok := ParseQueryLevel(" study ")
	if !ok || level != QueryLevelStudy {
		t.Errorf("ParseQueryLevel = %v, %v", level, ok)
	}
	if _, ok := ParseQueryLevel("FRAME"); ok {
		t.Error("FRAME should not parse")
	}
}

func TestPresentationContextAccepted(t *testing.T) {
	pc := PresentationContext{ID: 1, Result: PresentationAcceptance, TransferSyntax: ImplicitVRLittleEndian}
	if !pc.Accepted() {
		t.Error("accepted context reported as rejected")
	}
	pc.Result = PresentationAbstractSyntaxRejected
	if pc.Accepted() {
		t.Error("rejected context reported as accepted")
	}
}
