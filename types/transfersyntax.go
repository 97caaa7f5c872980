package types

import "encoding/binary"

// Native transfer syntaxes.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
)

// Encapsulated transfer syntaxes. Pixel data under these is carried as opaque
// fragments; everything else is Explicit VR Little Endian.
const (
	JPEGBaseline8Bit                    = "1.2.840.10008.1.2.4.50"
	JPEGExtended12Bit                   = "1.2.840.10008.1.2.4.51"
	JPEGLossless                        = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1                     = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless                      = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless                  = "1.2.840.10008.1.2.4.81"
	JPEG2000Lossless                    = "1.2.840.10008.1.2.4.90"
	JPEG2000                            = "1.2.840.10008.1.2.4.91"
	JPEG2000Part2MultiComponentLossless = "1.2.840.10008.1.2.4.92"
	JPEG2000Part2MultiComponent         = "1.2.840.10008.1.2.4.93"
	MPEG2MainProfile                    = "1.2.840.10008.1.2.4.100"
	MPEG2MainProfileHighLevel           = "1.2.840.10008.1.2.4.101"
	MPEG4AVCH264HighProfile             = "1.2.840.10008.1.2.4.102"
	MPEG4AVCH264BDCompatibleHighProfile = "1.2.840.10008.1.2.4.103"
	HEVCH265MainProfileLevel51          = "1.2.840.10008.1.2.4.107"
	HEVCH265Main10ProfileLevel51        = "1.2.840.10008.1.2.4.108"
	RLELossless                         = "1.2.840.10008.1.2.5"
)

// TransferSyntax describes how a data set is laid out on the wire.
type TransferSyntax struct {
	UID          string
	Name         string
	ByteOrder    binary.ByteOrder
	ExplicitVR   bool
	Deflated     bool
	Encapsulated bool
	Lossless     bool
	Retired      bool
}

var transferSyntaxes = map[string]TransferSyntax{}

func registerTransferSyntax(ts TransferSyntax) {
	if ts.ByteOrder == nil {
		ts.ByteOrder = binary.LittleEndian
	}
	transferSyntaxes[ts.UID] = ts
}

func init() {
	registerTransferSyntax(TransferSyntax{UID: ImplicitVRLittleEndian, Name: "Implicit VR Little Endian", Lossless: true})
	registerTransferSyntax(TransferSyntax{UID: ExplicitVRLittleEndian, Name: "Explicit VR Little Endian", ExplicitVR: true, Lossless: true})
	registerTransferSyntax(TransferSyntax{UID: DeflatedExplicitVRLittleEndian, Name: "Deflated Explicit VR Little Endian", ExplicitVR: true, Deflated: true, Lossless: true})
	registerTransferSyntax(TransferSyntax{UID: ExplicitVRBigEndian, Name: "Explicit VR Big Endian", ByteOrder: binary.BigEndian, ExplicitVR: true, Lossless: true, Retired: true})

	encapsulated := []struct {
		uid, name string
		lossless  bool
	}{
		{JPEGBaseline8Bit, "JPEG Baseline (Process 1)", false},
		{JPEGExtended12Bit, "JPEG Extended (Process 2 & 4)", false},
		{JPEGLossless, "JPEG Lossless, Non-Hierarchical (Process 14)", true},
		{JPEGLosslessSV1, "JPEG Lossless, First-Order Prediction", true},
		{JPEGLSLossless, "JPEG-LS Lossless", true},
		{JPEGLSNearLossless, "JPEG-LS Near-Lossless", false},
		{JPEG2000Lossless, "JPEG 2000 (Lossless Only)", true},
		{JPEG2000, "JPEG 2000", false},
		{JPEG2000Part2MultiComponentLossless, "JPEG 2000 Part 2 Multi-component (Lossless Only)", true},
		{JPEG2000Part2MultiComponent, "JPEG 2000 Part 2 Multi-component", false},
		{MPEG2MainProfile, "MPEG2 Main Profile @ Main Level", false},
		{MPEG2MainProfileHighLevel, "MPEG2 Main Profile @ High Level", false},
		{MPEG4AVCH264HighProfile, "MPEG-4 AVC/H.264 High Profile / Level 4.1", false},
		{MPEG4AVCH264BDCompatibleHighProfile, "MPEG-4 AVC/H.264 BD-compatible High Profile / Level 4.1", false},
		{HEVCH265MainProfileLevel51, "HEVC/H.265 Main Profile / Level 5.1", false},
		{HEVCH265Main10ProfileLevel51, "HEVC/H.265 Main 10 Profile / Level 5.1", false},
		{RLELossless, "RLE Lossless", true},
	}
	for _, e := range encapsulated {
		registerTransferSyntax(TransferSyntax{UID: e.uid, Name: e.name, ExplicitVR: true, Encapsulated: true, Lossless: e.lossless})
	}
}

// LookupTransferSyntax returns the layout of a known transfer syntax.
func LookupTransferSyntax(uid string) (TransferSyntax, bool) {
	ts, ok := transferSyntaxes[uid]
	return ts, ok
}

// IsSupportedTransferSyntax reports whether data sets can be encoded and decoded under uid.
func IsSupportedTransferSyntax(uid string) bool {
	_, ok := transferSyntaxes[uid]
	return ok
}

// IsCompressed returns true if the transfer syntax encapsulates pixel data.
func IsCompressed(uid string) bool {
	ts, ok := transferSyntaxes[uid]
	return ok && ts.Encapsulated
}

// IsLossless returns true for native syntaxes and lossless codecs.
func IsLossless(uid string) bool {
	ts, ok := transferSyntaxes[uid]
	return ok && ts.Lossless
}

// IsRetired returns true if the transfer syntax is retired
func IsRetired(uid string) bool {
	ts, ok := transferSyntaxes[uid]
	return ok && ts.Retired
}

// TransferSyntaxName returns a human readable name, or the UID itself when unknown.
func TransferSyntaxName(uid string) string {
	if ts, ok := transferSyntaxes[uid]; ok {
		return ts.Name
	}
	return uid
}

// GetCommonTransferSyntaxes returns the syntaxes proposed by default, most preferred first.
func GetCommonTransferSyntaxes() []string {
	return []string{
		ExplicitVRLittleEndian,
		ImplicitVRLittleEndian,
	}
}

// GetNativeTransferSyntaxes returns every uncompressed syntax the codec handles.
func GetNativeTransferSyntaxes() []string {
	return []string{
		ExplicitVRLittleEndian,
		ImplicitVRLittleEndian,
		DeflatedExplicitVRLittleEndian,
		ExplicitVRBigEndian,
	}
}
