package dicom

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestTag_String(t *testing.T) {
	tests := []struct {
		name     string
		tag      Tag
		expected string
	}{
		{"Patient Name", Tag{0x0010, 0x0010}, "(0010,0010)"},
		{"Study Instance UID", Tag{0x0020, 0x000D}, "(0020,000d)"},
		{"Series Instance UID", Tag{0x0020, 0x000E}, "(0020,000e)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.tag.String()
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestNewDataset(t *testing.T) {
	ds := NewDataset()
	if ds == nil {
		t.Fatal("NewDataset returned nil")
	}
	if ds.Len() != 0 {
		t.Errorf("Expected empty dataset, got %d elements", ds.Len())
	}
}

func TestDataset_InsertKeepsTagOrder(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(PatientID, "", "12345")
	ds.AddElement(SOPInstanceUID, "", "1.2.3")
	ds.AddElement(Rows, "", uint16(512))
	ds.AddElement(PatientName, "", "DOE^JOHN")

	want := []Tag{SOPInstanceUID, PatientName, PatientID, Rows}
	got := ds.Elements()
	if len(got) != len(want) {
		t.Fatalf("Expected %d elements, got %d", len(want), len(got))
	}
	for i, tag := range want {
		if got[i].Tag != tag {
			t.Errorf("Element %d: expected %s, got %s", i, tag, got[i].Tag)
		}
	}
	if got[1].VR != VR_PN {
		t.Errorf("Expected dictionary VR PN, got %s", got[1].VR)
	}
}

func TestDataset_InsertReplace(t *testing.T) {
	ds := NewDataset()
	if err := ds.Insert(PatientID, VR_LO, "A", false); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := ds.Insert(PatientID, VR_LO, "B", false)
	if !errors.Is(err, ErrDuplicateTag) {
		t.Fatalf("Expected ErrDuplicateTag, got %v", err)
	}
	if got := ds.GetString(PatientID); got != "A" {
		t.Errorf("Expected value to stay A, got %s", got)
	}
	if err := ds.Insert(PatientID, VR_LO, "B", true); err != nil {
		t.Fatalf("Insert with replace failed: %v", err)
	}
	if got := ds.GetString(PatientID); got != "B" {
		t.Errorf("Expected B after replace, got %s", got)
	}
}

func TestDataset_Remove(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(PatientName, VR_PN, "DOE^JOHN")

	if !ds.Remove(PatientName) {
		t.Error("Expected Remove to report an existing element")
	}
	if ds.Remove(PatientName) {
		t.Error("Expected second Remove to report nothing removed")
	}
	if ds.Contains(PatientName) {
		t.Error("Element still present after Remove")
	}
}

func TestDataset_Search(t *testing.T) {
	ds := NewDataset()

	tag := Tag{0x0010, 0x0010}
	ds.AddElement(tag, VR_PN, "DOE^JOHN")

	element, exists := ds.Search(tag)
	if !exists {
		t.Fatal("Element not found after adding")
	}
	if element.Tag != tag {
		t.Errorf("Tag mismatch: expected %v, got %v", tag, element.Tag)
	}
	if element.Value != "DOE^JOHN" {
		t.Errorf("Value mismatch: got %v", element.Value)
	}

	if _, exists := ds.Search(Tag{0x0010, 0x0020}); exists {
		t.Error("Expected missing element")
	}

	var nilSet *Dataset
	if _, exists := nilSet.Search(tag); exists {
		t.Error("Expected nil dataset to hold nothing")
	}
}

func TestDataset_GetString(t *testing.T) {
	ds := NewDataset()

	tests := []struct {
		name     string
		tag      Tag
		value    interface{}
		expected string
	}{
		{"String value", Tag{0x0010, 0x0010}, "DOE^JOHN", "DOE^JOHN"},
		{"String with spaces", Tag{0x0010, 0x0020}, "  12345  ", "12345"},
		{"UID with NUL pad", Tag{0x0008, 0x0018}, "1.2.3\x00", "1.2.3"},
		{"Non-string value", Tag{0x0020, 0x0011}, 123, ""},
		{"Non-existing tag", Tag{0xFFFF, 0xFFFF}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != nil {
				ds.AddElement(tt.tag, VR_LO, tt.value)
			}
			result := ds.GetString(tt.tag)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestDataset_GetStrings(t *testing.T) {
	ds := NewDataset()

	tests := []struct {
		name     string
		tag      Tag
		value    interface{}
		expected []string
	}{
		{
			name:     "Single value",
			tag:      Tag{0x0008, 0x0060},
			value:    "CT",
			expected: []string{"CT"},
		},
		{
			name:     "Multiple values with backslash",
			tag:      Tag{0x0008, 0x0008},
			value:    "ORIGINAL\\PRIMARY\\AXIAL",
			expected: []string{"ORIGINAL", "PRIMARY", "AXIAL"},
		},
		{
			name:     "String slice",
			tag:      Tag{0x0008, 0x0018},
			value:    []string{"value1", "value2"},
			expected: []string{"value1", "value2"},
		},
		{
			name:     "Non-string value",
			tag:      Tag{0x0020, 0x0013},
			value:    123,
			expected: nil,
		},
		{
			name:     "Non-existing tag",
			tag:      Tag{0xFFFF, 0xFFFF},
			value:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != nil {
				ds.AddElement(tt.tag, VR_CS, tt.value)
			}
			result := ds.GetStrings(tt.tag)
			if len(result) != len(tt.expected) {
				t.Errorf("Expected %d strings, got %d", len(tt.expected), len(result))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("String[%d]: expected %q, got %q", i, tt.expected[i], result[i])
				}
			}
		})
	}
}

func TestDataset_GetInt(t *testing.T) {
	ds := NewDataset()
	ds.AddElement(Rows, VR_US, uint16(256))
	ds.AddElement(InstanceNumber, VR_IS, "42 ")
	ds.AddElement(SeriesNumber, VR_IS, "x")

	if n, ok := ds.GetInt(Rows); !ok || n != 256 {
		t.Errorf("Rows: got %d, %v", n, ok)
	}
	if n, ok := ds.GetInt(InstanceNumber); !ok || n != 42 {
		t.Errorf("InstanceNumber: got %d, %v", n, ok)
	}
	if _, ok := ds.GetInt(SeriesNumber); ok {
		t.Error("Expected non-numeric IS to fail")
	}
	if _, ok := ds.GetInt(Columns); ok {
		t.Error("Expected missing element to fail")
	}
}

func TestDataset_CopyIsDeep(t *testing.T) {
	item := NewDataset()
	item.AddElement(ReferencedSOPInstanceUID, VR_UI, "1.2.3")

	ds := NewDataset()
	ds.AddElement(PixelData, VR_OW, []byte{1, 2, 3, 4})
	ds.AddElement(ReferencedSOPSequence, VR_SQ, []*Dataset{item})

	cp := ds.Copy()
	ds.GetSequence(ReferencedSOPSequence)[0].AddElement(ReferencedSOPInstanceUID, VR_UI, "9.9")
	el, _ := ds.Search(PixelData)
	el.Value.([]byte)[0] = 0xFF

	if got := cp.GetSequence(ReferencedSOPSequence)[0].GetString(ReferencedSOPInstanceUID); got != "1.2.3" {
		t.Errorf("Copy shares sequence items: got %s", got)
	}
	cel, _ := cp.Search(PixelData)
	if cel.Value.([]byte)[0] != 1 {
		t.Error("Copy shares byte storage")
	}
}

func TestMerge(t *testing.T) {
	base := NewDataset()
	base.AddElement(PatientName, VR_PN, "DOE^JOHN")
	base.AddElement(PatientID, VR_LO, "1")

	overrides := NewDataset()
	overrides.AddElement(PatientID, VR_LO, "2")
	overrides.AddElement(QueryRetrieveLevel, VR_CS, "STUDY")

	merged := Merge(base, overrides)

	if merged.GetString(PatientID) != "2" {
		t.Errorf("Expected override to win, got %s", merged.GetString(PatientID))
	}
	if merged.GetString(PatientName) != "DOE^JOHN" {
		t.Error("Base element lost")
	}
	if base.GetString(PatientID) != "1" || base.Contains(QueryRetrieveLevel) {
		t.Error("Merge modified base")
	}

	merged.AddElement(QueryRetrieveLevel, VR_CS, "SERIES")
	if overrides.GetString(QueryRetrieveLevel) != "STUDY" {
		t.Error("Merge result aliases overrides")
	}

	if Merge(nil, overrides).Len() != 2 {
		t.Error("Expected merge over nil base to hold the overrides")
	}
}

func TestParseDataset(t *testing.T) {
	element := func(group, elem uint16, vr string, value string) []byte {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint16(data[0:2], group)
		binary.LittleEndian.PutUint16(data[2:4], elem)
		data[4] = vr[0]
		data[5] = vr[1]
		binary.LittleEndian.PutUint16(data[6:8], uint16(len(value)))
		return append(data, value...)
	}

	tests := []struct {
		name        string
		data        []byte
		expectedLen int
		checks      func(t *testing.T, ds *Dataset)
	}{
		{
			name:        "Empty dataset",
			data:        []byte{},
			expectedLen: 0,
		},
		{
			name:        "Single element",
			data:        element(0x0010, 0x0010, "PN", "DOE^JOHN"),
			expectedLen: 1,
			checks: func(t *testing.T, ds *Dataset) {
				if value := ds.GetString(PatientName); value != "DOE^JOHN" {
					t.Errorf("Expected DOE^JOHN, got %s", value)
				}
			},
		},
		{
			name: "Multiple elements",
			data: append(element(0x0010, 0x0010, "PN", "DOE^JOHN"),
				element(0x0010, 0x0020, "LO", "12345 ")...),
			expectedLen: 2,
			checks: func(t *testing.T, ds *Dataset) {
				if id := ds.GetString(PatientID); id != "12345" {
					t.Errorf("Expected 12345, got %s", id)
				}
			},
		},
		{
			name:        "Unsigned short",
			data:        element(0x0028, 0x0010, "US", "\x00\x02"),
			expectedLen: 1,
			checks: func(t *testing.T, ds *Dataset) {
				if rows, ok := ds.GetUint16(Rows); !ok || rows != 512 {
					t.Errorf("Expected 512 rows, got %d", rows)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseDataset(tt.data)
			if err != nil {
				t.Fatalf("ParseDataset failed: %v", err)
			}
			if ds.Len() != tt.expectedLen {
				t.Errorf("Expected %d elements, got %d", tt.expectedLen, ds.Len())
			}
			if tt.checks != nil {
				tt.checks(t, ds)
			}
		})
	}
}

func TestParseDataset_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Truncated header", []byte{0x10, 0x00, 0x10}},
		{"Value past end", []byte{0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x10, 0x00, 'A', 'B'}},
		{"Bad VR", []byte{0x10, 0x00, 0x10, 0x00, 0x01, 0x02, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataset(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{"PatientID", PatientID, false},
		{"0010,0020", PatientID, false},
		{"(0020,000d)", StudyInstanceUID, false},
		{"0009,1001", Tag{0x0009, 0x1001}, false},
		{"NoSuchKeyword", Tag{}, true},
		{"10,", Tag{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
