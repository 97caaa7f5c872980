package dicom

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/caio-sobreiro/dimsenet/types"
)

// createValidPart10File creates a minimal valid DICOM Part 10 file for testing
func createValidPart10File() []byte {
	var data []byte

	// 128-byte preamble (all zeros)
	data = append(data, make([]byte, 128)...)
	data = append(data, []byte("DICM")...)

	// Transfer Syntax UID (0002,0010)
	data = append(data, 0x02, 0x00, 0x10, 0x00)
	data = append(data, 'U', 'I')
	tsUID := "1.2.840.10008.1.2.1\x00"
	tsLength := make([]byte, 2)
	binary.LittleEndian.PutUint16(tsLength, uint16(len(tsUID)))
	data = append(data, tsLength...)
	data = append(data, []byte(tsUID)...)

	// Patient Name (0010,0010)
	data = append(data, 0x10, 0x00, 0x10, 0x00)
	data = append(data, 'P', 'N')
	patientName := "TEST^PATIENT"
	nameLength := make([]byte, 2)
	binary.LittleEndian.PutUint16(nameLength, uint16(len(patientName)))
	data = append(data, nameLength...)
	data = append(data, []byte(patientName)...)

	return data
}

func TestStripPart10Header_ValidFile(t *testing.T) {
	data := createValidPart10File()

	dataset, ts, err := StripPart10Header(data)
	if err != nil {
		t.Fatalf("StripPart10Header() error = %v", err)
	}
	if ts != types.ExplicitVRLittleEndian {
		t.Errorf("Expected explicit little endian, got %q", ts)
	}

	expectedTag := []byte{0x10, 0x00, 0x10, 0x00}
	if len(dataset) < 4 || !bytes.Equal(dataset[0:4], expectedTag) {
		t.Errorf("Expected dataset to start with tag 0010,0010, got % x", dataset)
	}
}

func TestStripPart10Header_Errors(t *testing.T) {
	noTS := append(make([]byte, 128), []byte("DICM")...)
	noTS = append(noTS, 0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x04, 0x00, 'T', 'E', 'S', 'T')

	truncatedMeta := append(make([]byte, 128), []byte("DICM")...)
	truncatedMeta = append(truncatedMeta, 0x02, 0x00, 0x01, 0x00, 'O', 'B', 0, 0, 0x64, 0, 0, 0, 1, 2)

	tests := []struct {
		name    string
		data    []byte
		wantMsg string
	}{
		{"Too short", []byte{0x01, 0x02, 0x03}, "too short"},
		{"Missing DICM", make([]byte, 200), "missing DICM"},
		{"No transfer syntax", noTS, "no transfer syntax"},
		{"Truncated meta", truncatedMeta, "truncated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := StripPart10Header(tt.data)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !bytes.Contains([]byte(err.Error()), []byte(tt.wantMsg)) {
				t.Errorf("Expected %q in error, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestStripPart10Header_LongVRElement(t *testing.T) {
	var data []byte
	data = append(data, make([]byte, 128)...)
	data = append(data, []byte("DICM")...)

	// (0002,0001) OB uses the 32-bit length form
	data = append(data, 0x02, 0x00, 0x01, 0x00, 'O', 'B', 0x00, 0x00)
	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, 2)
	data = append(data, length...)
	data = append(data, 0x00, 0x01)

	data = append(data, 0x02, 0x00, 0x10, 0x00, 'U', 'I', 0x12, 0x00)
	data = append(data, []byte("1.2.840.10008.1.2\x00")...)

	data = append(data, 0x10, 0x00, 0x10, 0x00, 0x04, 0x00, 0x00, 0x00)
	data = append(data, []byte("TEST")...)

	dataset, ts, err := StripPart10Header(data)
	if err != nil {
		t.Fatalf("StripPart10Header() error = %v", err)
	}
	if ts != types.ImplicitVRLittleEndian {
		t.Errorf("Expected implicit little endian, got %q", ts)
	}
	if len(dataset) != 12 {
		t.Errorf("Expected 12 dataset bytes, got %d", len(dataset))
	}
}

func TestHasPart10Header(t *testing.T) {
	noDICM := make([]byte, 200)
	copy(noDICM[128:132], []byte("XXXX"))

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"Valid", createValidPart10File(), true},
		{"Too short", []byte{0x01, 0x02, 0x03}, false},
		{"No DICM", noDICM, false},
		{"Raw dataset", []byte{0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x04, 0x00, 'T', 'E', 'S', 'T'}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPart10Header(tt.data); got != tt.want {
				t.Errorf("HasPart10Header() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ct.dcm")

	ds := NewDataset()
	ds.AddElement(SOPClassUID, VR_UI, types.CTImageStorage)
	ds.AddElement(SOPInstanceUID, VR_UI, "1.2.3.4")
	ds.AddElement(PatientName, VR_PN, "DOE^JANE")

	if err := WriteFile(path, ds, types.ExplicitVRBigEndian, EncodeOptions{}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if f.TransferSyntax != types.ExplicitVRBigEndian {
		t.Errorf("Expected big endian, got %s", f.TransferSyntax)
	}
	if got := f.Meta.GetString(MediaStorageSOPInstanceUID); got != "1.2.3.4" {
		t.Errorf("Expected meta instance 1.2.3.4, got %s", got)
	}
	if got := f.Meta.GetString(ImplementationClassUID); got != ImplementationClassUIDValue {
		t.Errorf("Unexpected implementation class %s", got)
	}
	if got := f.Dataset.GetString(PatientName); got != "DOE^JANE" {
		t.Errorf("Expected DOE^JANE, got %s", got)
	}
}

func TestReadFile_RawDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.dcm")
	data := []byte{0x10, 0x00, 0x20, 0x00, 0x02, 0x00, 0x00, 0x00, 'I', 'D'}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if f.Meta != nil {
		t.Error("Expected no meta for a raw data set")
	}
	if got := f.Dataset.GetString(PatientID); got != "ID" {
		t.Errorf("Expected ID, got %s", got)
	}
}
