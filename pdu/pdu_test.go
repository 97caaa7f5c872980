package pdu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

func TestPDUTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant byte
		expected byte
	}{
		{"Associate-RQ", TypeAssociateRQ, 0x01},
		{"Associate-AC", TypeAssociateAC, 0x02},
		{"Associate-RJ", TypeAssociateRJ, 0x03},
		{"P-DATA-TF", TypePDataTF, 0x04},
		{"Release-RQ", TypeReleaseRQ, 0x05},
		{"Release-RP", TypeReleaseRP, 0x06},
		{"Abort", TypeAbort, 0x07},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = 0x%02x, want 0x%02x", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestReadPDU(t *testing.T) {
	in := newPDU(TypeReleaseRQ, []byte{0, 0, 0, 0})
	got, err := ReadPDU(bytes.NewReader(in.Bytes()))
	if err != nil {
		t.Fatalf("ReadPDU() error = %v", err)
	}
	if got.Type != TypeReleaseRQ || got.Length != 4 || len(got.Data) != 4 {
		t.Errorf("ReadPDU() = %+v", got)
	}

	if _, err := ReadPDU(bytes.NewReader([]byte{0x04, 0, 0, 0})); err == nil {
		t.Error("expected error for truncated header")
	}

	huge := []byte{0x04, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := ReadPDU(bytes.NewReader(huge)); !errors.Is(err, dimseerrors.ErrInvalidPDU) {
		t.Errorf("oversized PDU error = %v, want ErrInvalidPDU", err)
	}
}

func TestPDataTFRoundTrip(t *testing.T) {
	pdvs := []dimse.PDV{
		{ContextID: 1, Data: []byte{1, 2, 3, 4}, Command: true, Last: true},
		{ContextID: 1, Data: []byte{5, 6}, Command: false, Last: false},
		{ContextID: 3, Data: []byte{}, Command: false, Last: true},
	}
	p := EncodePDataTF(pdvs...)
	if p.Type != TypePDataTF {
		t.Fatalf("type = 0x%02x", p.Type)
	}
	if want := uint32(6*3 + 6); p.Length != want {
		t.Errorf("length = %d, want %d", p.Length, want)
	}

	got, err := DecodePDataTF(p.Data)
	if err != nil {
		t.Fatalf("DecodePDataTF() error = %v", err)
	}
	if len(got) != len(pdvs) {
		t.Fatalf("got %d PDVs, want %d", len(got), len(pdvs))
	}
	for i := range pdvs {
		if got[i].ContextID != pdvs[i].ContextID || got[i].Command != pdvs[i].Command || got[i].Last != pdvs[i].Last {
			t.Errorf("PDV %d header = %+v, want %+v", i, got[i], pdvs[i])
		}
		if !bytes.Equal(got[i].Data, pdvs[i].Data) {
			t.Errorf("PDV %d data = %v, want %v", i, got[i].Data, pdvs[i].Data)
		}
	}
}

func TestPDataTFControlHeader(t *testing.T) {
	tests := []struct {
		command, last bool
		want          byte
	}{
		{false, false, 0x00},
		{true, false, 0x01},
		{false, true, 0x02},
		{true, true, 0x03},
	}
	for _, tt := range tests {
		p := EncodePDataTF(dimse.PDV{ContextID: 7, Command: tt.command, Last: tt.last})
		if p.Data[4] != 7 || p.Data[5] != tt.want {
			t.Errorf("command=%v last=%v: header = % x, want 07 %02x", tt.command, tt.last, p.Data[4:6], tt.want)
		}
	}
}

func TestDecodePDataTFErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{0, 0, 0, 2, 1}},
		{"length below item header", []byte{0, 0, 0, 1, 1, 3}},
		{"length past end", []byte{0, 0, 0, 9, 1, 3, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePDataTF(tt.data); !errors.Is(err, dimseerrors.ErrInvalidPDU) {
				t.Errorf("DecodePDataTF() error = %v, want ErrInvalidPDU", err)
			}
		})
	}
}

func TestAssociateRQRoundTrip(t *testing.T) {
	rq := &AssociateRQ{
		CalledAETitle:  "ARCHIVE",
		CallingAETitle: "MODALITY",
		Contexts: []ProposedContext{
			{ID: 1, AbstractSyntax: types.VerificationSOPClass, TransferSyntaxes: []string{types.ImplicitVRLittleEndian}},
			{ID: 3, AbstractSyntax: types.CTImageStorage, TransferSyntaxes: []string{types.ExplicitVRLittleEndian, types.ImplicitVRLittleEndian}},
		},
		MaxPDULength: 32768,
	}
	p := rq.Encode()
	got, err := DecodeAssociateRQ(p.Data)
	if err != nil {
		t.Fatalf("DecodeAssociateRQ() error = %v", err)
	}
	if got.CalledAETitle != "ARCHIVE" || got.CallingAETitle != "MODALITY" {
		t.Errorf("AE titles = %q/%q", got.CalledAETitle, got.CallingAETitle)
	}
	if got.ApplicationContext != types.ApplicationContextUID {
		t.Errorf("application context = %q", got.ApplicationContext)
	}
	if got.MaxPDULength != 32768 {
		t.Errorf("MaxPDULength = %d", got.MaxPDULength)
	}
	if got.ImplementationClassUID != ImplementationClassUID || got.ImplementationVersion != ImplementationVersionName {
		t.Errorf("implementation = %q/%q", got.ImplementationClassUID, got.ImplementationVersion)
	}
	if len(got.Contexts) != 2 || len(got.Contexts[1].TransferSyntaxes) != 2 || got.Contexts[1].AbstractSyntax != types.CTImageStorage {
		t.Errorf("contexts = %+v", got.Contexts)
	}
}

func TestAssociateRQTruncatesAETitles(t *testing.T) {
	rq := &AssociateRQ{CalledAETitle: "A_VERY_LONG_AE_TITLE_INDEED", CallingAETitle: "X"}
	got, err := DecodeAssociateRQ(rq.Encode().Data)
	if err != nil {
		t.Fatal(err)
	}
	if got.CalledAETitle != "A_VERY_LONG_AE_T" {
		t.Errorf("called = %q", got.CalledAETitle)
	}
}

func TestAssociateACRoundTrip(t *testing.T) {
	proposed := []ProposedContext{
		{ID: 1, AbstractSyntax: types.VerificationSOPClass},
		{ID: 3, AbstractSyntax: types.MRImageStorage},
		{ID: 5, AbstractSyntax: types.CTImageStorage},
	}
	ac := &AssociateAC{
		CalledAETitle:  "ARCHIVE",
		CallingAETitle: "MODALITY",
		Contexts: []types.PresentationContext{
			{ID: 5, Result: types.PresentationAcceptance, TransferSyntax: types.ExplicitVRLittleEndian},
			{ID: 3, Result: types.PresentationAbstractSyntaxRejected},
			{ID: 1, Result: types.PresentationAcceptance, TransferSyntax: types.ImplicitVRLittleEndian},
		},
		MaxPDULength: 16384,
	}
	got, err := DecodeAssociateAC(ac.Encode().Data, proposed)
	if err != nil {
		t.Fatalf("DecodeAssociateAC() error = %v", err)
	}
	if len(got.Contexts) != 3 {
		t.Fatalf("got %d contexts", len(got.Contexts))
	}
	want := []types.PresentationContext{
		{ID: 1, Result: types.PresentationAcceptance, AbstractSyntax: types.VerificationSOPClass, TransferSyntax: types.ImplicitVRLittleEndian},
		{ID: 3, Result: types.PresentationProviderRejection, AbstractSyntax: types.MRImageStorage},
		{ID: 5, Result: types.PresentationAcceptance, AbstractSyntax: types.CTImageStorage, TransferSyntax: types.ExplicitVRLittleEndian},
	}
	for i := range want {
		if got.Contexts[i] != want[i] {
			t.Errorf("context %d = %+v, want %+v", i, got.Contexts[i], want[i])
		}
	}
	if got.MaxPDULength != 16384 {
		t.Errorf("MaxPDULength = %d", got.MaxPDULength)
	}
}

func TestAssociateRJ(t *testing.T) {
	rj := &AssociateRJ{Source: dimseerrors.RejectSourceServiceUser, Reason: dimseerrors.RejectReasonCalledAETitleNotRecognized}
	got := DecodeAssociateRJ(rj.Encode().Data)
	if got.Result != 0x01 || got.Source != rj.Source || got.Reason != rj.Reason {
		t.Errorf("DecodeAssociateRJ() = %+v", got)
	}
	if err := got.Err(); !errors.Is(err, dimseerrors.ErrAssociationRejected) {
		t.Errorf("Err() = %v, want ErrAssociationRejected", err)
	}
}

func TestAbortPDU(t *testing.T) {
	p := encodeAbort(AbortSourceServiceProvider, AbortReasonUnexpectedPDU)
	got := decodeAbort(p.Data)
	if got.Source != AbortSourceServiceProvider || got.Reason != AbortReasonUnexpectedPDU {
		t.Errorf("decodeAbort() = %+v", got)
	}
}
