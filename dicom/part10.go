package dicom

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caio-sobreiro/dimsenet/types"
)

const (
	preambleLength = 128
	part10Magic    = "DICM"
)

// File is a parsed Part 10 file.
type File struct {
	Meta           *Dataset
	Dataset        *Dataset
	TransferSyntax string
}

// HasPart10Header checks if the data starts with a DICOM Part 10 header.
//
// Returns true if the data contains the 128-byte preamble followed by "DICM".
func HasPart10Header(data []byte) bool {
	if len(data) < preambleLength+4 {
		return false
	}
	return string(data[preambleLength:preambleLength+4]) == part10Magic
}

// StripPart10Header removes the DICOM Part 10 preamble and File Meta Information
// to extract just the dataset.
//
// DICOM Part 10 files contain:
//   - 128 byte preamble
//   - 4 byte "DICM" prefix
//   - File Meta Information elements (group 0x0002, always explicit VR little endian)
//   - Dataset, encoded in the transfer syntax named by (0002,0010)
//
// The returned bytes can be streamed as a C-STORE data set when the transfer
// syntax matches the presentation context.
func StripPart10Header(data []byte) (dataset []byte, transferSyntax string, err error) {
	if len(data) < preambleLength+4 {
		return nil, "", fmt.Errorf("data too short to be DICOM Part 10 (need at least 132 bytes, got %d)", len(data))
	}
	if !HasPart10Header(data) {
		return nil, "", fmt.Errorf("not a valid DICOM Part 10 file (missing DICM prefix at offset 128)")
	}

	meta, offset, err := parseMeta(data[preambleLength+4:])
	if err != nil {
		return nil, "", err
	}
	offset += preambleLength + 4
	transferSyntax = meta.GetString(TransferSyntaxUID)
	if transferSyntax == "" {
		return nil, "", fmt.Errorf("file meta information has no transfer syntax")
	}

	slog.Debug("Found Transfer Syntax UID in File Meta Information",
		"transfer_syntax", transferSyntax,
		"dataset_start_offset", offset)

	return data[offset:], transferSyntax, nil
}

// parseMeta decodes the leading group 0002 elements and returns them with the
// number of bytes consumed.
func parseMeta(data []byte) (*Dataset, int, error) {
	end := 0
	for end+8 <= len(data) {
		if binary.LittleEndian.Uint16(data[end:]) != 0x0002 {
			break
		}
		vr := string(data[end+4 : end+6])
		var length, header int
		if hasLongLength(vr) {
			if end+12 > len(data) {
				return nil, 0, fmt.Errorf("%w: truncated file meta information", ErrMalformed)
			}
			length, header = int(binary.LittleEndian.Uint32(data[end+8:])), 12
		} else {
			length, header = int(binary.LittleEndian.Uint16(data[end+6:])), 8
		}
		end += header + length
	}
	if end > len(data) {
		return nil, 0, fmt.Errorf("%w: truncated file meta information", ErrMalformed)
	}
	d := &decoder{data: data[:end], order: binary.LittleEndian, explicit: true}
	meta, err := d.elements(end, false)
	if err != nil {
		return nil, 0, err
	}
	return meta, end, nil
}

// ParseFile decodes a Part 10 file held in memory.
func ParseFile(data []byte) (*File, error) {
	body, ts, err := StripPart10Header(data)
	if err != nil {
		return nil, err
	}
	meta, _, err := parseMeta(data[preambleLength+4:])
	if err != nil {
		return nil, err
	}
	ds, err := ParseDatasetWithTransferSyntax(body, ts)
	if err != nil {
		return nil, err
	}
	return &File{Meta: meta, Dataset: ds, TransferSyntax: ts}, nil
}

// ReadFile reads a Part 10 file. Files without a preamble are read as a bare
// data set in Implicit VR Little Endian.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !HasPart10Header(data) {
		ds, err := ParseDatasetWithTransferSyntax(data, types.ImplicitVRLittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &File{Dataset: ds, TransferSyntax: types.ImplicitVRLittleEndian}, nil
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// NewFileMeta builds the group 0002 elements for an instance.
func NewFileMeta(sopClassUID, sopInstanceUID, transferSyntaxUID, sourceAE string) *Dataset {
	meta := NewDataset()
	meta.AddElement(FileMetaInformationGroupLength, VR_UL, uint32(0))
	meta.AddElement(FileMetaInformationVersion, VR_OB, []byte{0x00, 0x01})
	meta.AddElement(MediaStorageSOPClassUID, VR_UI, sopClassUID)
	meta.AddElement(MediaStorageSOPInstanceUID, VR_UI, sopInstanceUID)
	meta.AddElement(TransferSyntaxUID, VR_UI, transferSyntaxUID)
	meta.AddElement(ImplementationClassUID, VR_UI, ImplementationClassUIDValue)
	meta.AddElement(ImplementationVersionName, VR_SH, ImplementationVersionValue)
	if sourceAE != "" {
		meta.AddElement(SourceApplicationEntityTitle, VR_AE, sourceAE)
	}
	return meta
}

// WriteFileHeader writes the preamble, magic and meta group. The caller
// appends the data set bytes encoded in the meta transfer syntax.
func WriteFileHeader(w io.Writer, meta *Dataset) error {
	var buf bytes.Buffer
	buf.Write(make([]byte, preambleLength))
	buf.WriteString(part10Magic)
	if err := Write(&buf, meta, types.ExplicitVRLittleEndian, EncodeOptions{GroupLength: GroupLengthRecalc}); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile encodes ds into a Part 10 file at path under transferSyntaxUID.
func WriteFile(path string, ds *Dataset, transferSyntaxUID string, opts EncodeOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	meta := NewFileMeta(ds.GetString(SOPClassUID), ds.GetString(SOPInstanceUID), transferSyntaxUID, "")
	if err := WriteFileHeader(w, meta); err != nil {
		return err
	}
	if err := Write(w, ds, transferSyntaxUID, opts); err != nil {
		return err
	}
	return w.Flush()
}
