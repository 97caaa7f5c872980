package dicom

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrDuplicateTag is returned by Insert when the tag exists and replace is false.
var ErrDuplicateTag = errors.New("dicom: element already present")

// Element represents a DICOM data element.
//
// Value holds one of: string, []string, []byte, uint16, []uint16, uint32,
// []uint32, int16, []int16, int32, []int32, float32, []float32, float64,
// []float64, Tag, []Tag, []*Dataset (SQ) or Fragments (encapsulated pixel data).
type Element struct {
	Tag   Tag
	VR    string
	Value interface{}
}

// Fragments is encapsulated pixel data: the basic offset table followed by
// the compressed fragments, each carried verbatim.
type Fragments [][]byte

// Dataset is an ordered collection of elements, kept sorted by tag.
type Dataset struct {
	elements []*Element

	// TransferSyntax is the syntax the data set was decoded from, if any.
	TransferSyntax string
}

// NewDataset creates a new empty dataset
func NewDataset() *Dataset {
	return &Dataset{}
}

func (d *Dataset) index(tag Tag) (int, bool) {
	i := sort.Search(len(d.elements), func(i int) bool {
		return !d.elements[i].Tag.Less(tag)
	})
	return i, i < len(d.elements) && d.elements[i].Tag == tag
}

// Insert adds an element. An existing element is overwritten only when replace is set.
func (d *Dataset) Insert(tag Tag, vr string, value interface{}, replace bool) error {
	if vr == "" {
		vr = LookupVR(tag)
	}
	el := &Element{Tag: tag, VR: vr, Value: value}
	i, found := d.index(tag)
	if found {
		if !replace {
			return fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
		}
		d.elements[i] = el
		return nil
	}
	d.elements = append(d.elements, nil)
	copy(d.elements[i+1:], d.elements[i:])
	d.elements[i] = el
	return nil
}

// AddElement inserts or replaces an element.
func (d *Dataset) AddElement(tag Tag, vr string, value interface{}) {
	_ = d.Insert(tag, vr, value, true)
}

// Remove deletes the element with tag and reports whether it existed.
func (d *Dataset) Remove(tag Tag) bool {
	i, found := d.index(tag)
	if !found {
		return false
	}
	d.elements = append(d.elements[:i], d.elements[i+1:]...)
	return true
}

// Search returns the element with tag.
func (d *Dataset) Search(tag Tag) (*Element, bool) {
	if d == nil {
		return nil, false
	}
	i, found := d.index(tag)
	if !found {
		return nil, false
	}
	return d.elements[i], true
}

// Contains reports whether tag is present.
func (d *Dataset) Contains(tag Tag) bool {
	_, ok := d.Search(tag)
	return ok
}

// Len returns the number of top level elements.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elements)
}

// Elements returns the elements in tag order. The slice is a copy.
func (d *Dataset) Elements() []*Element {
	if d == nil {
		return nil
	}
	out := make([]*Element, len(d.elements))
	copy(out, d.elements)
	return out
}

// Copy returns a deep copy; no value storage is shared with d.
func (d *Dataset) Copy() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{TransferSyntax: d.TransferSyntax, elements: make([]*Element, len(d.elements))}
	for i, el := range d.elements {
		out.elements[i] = &Element{Tag: el.Tag, VR: el.VR, Value: copyValue(el.Value)}
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []byte:
		return append([]byte(nil), val...)
	case []uint16:
		return append([]uint16(nil), val...)
	case []uint32:
		return append([]uint32(nil), val...)
	case []int16:
		return append([]int16(nil), val...)
	case []int32:
		return append([]int32(nil), val...)
	case []float32:
		return append([]float32(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []Tag:
		return append([]Tag(nil), val...)
	case []*Dataset:
		items := make([]*Dataset, len(val))
		for i, item := range val {
			items[i] = item.Copy()
		}
		return items
	case Fragments:
		frags := make(Fragments, len(val))
		for i, f := range val {
			frags[i] = append([]byte(nil), f...)
		}
		return frags
	}
	return v
}

// Merge returns a new data set holding base with every element of overrides
// inserted over it. Neither argument is modified.
func Merge(base, overrides *Dataset) *Dataset {
	out := base.Copy()
	if out == nil {
		out = NewDataset()
	}
	for _, el := range overrides.Elements() {
		out.AddElement(el.Tag, el.VR, copyValue(el.Value))
	}
	return out
}

// GetString returns a string value for a tag
func (d *Dataset) GetString(tag Tag) string {
	el, ok := d.Search(tag)
	if !ok {
		return ""
	}
	switch v := el.Value.(type) {
	case string:
		return strings.TrimRight(strings.TrimSpace(v), "\x00")
	case []string:
		return strings.TrimSpace(strings.Join(v, "\\"))
	}
	return ""
}

// GetStrings returns a slice of string values for a tag
func (d *Dataset) GetStrings(tag Tag) []string {
	el, ok := d.Search(tag)
	if !ok {
		return nil
	}
	switch v := el.Value.(type) {
	case string:
		parts := strings.Split(v, "\\")
		result := make([]string, len(parts))
		for i, part := range parts {
			result[i] = strings.TrimRight(strings.TrimSpace(part), "\x00")
		}
		return result
	case []string:
		return v
	}
	return nil
}

// GetUint16 returns the first value of a US element.
func (d *Dataset) GetUint16(tag Tag) (uint16, bool) {
	el, ok := d.Search(tag)
	if !ok {
		return 0, false
	}
	switch v := el.Value.(type) {
	case uint16:
		return v, true
	case []uint16:
		if len(v) > 0 {
			return v[0], true
		}
	case int:
		return uint16(v), true
	}
	return 0, false
}

// GetUint32 returns the first value of a UL element.
func (d *Dataset) GetUint32(tag Tag) (uint32, bool) {
	el, ok := d.Search(tag)
	if !ok {
		return 0, false
	}
	switch v := el.Value.(type) {
	case uint32:
		return v, true
	case []uint32:
		if len(v) > 0 {
			return v[0], true
		}
	case int:
		return uint32(v), true
	}
	return 0, false
}

// GetInt parses an IS element or reads a binary integer element.
func (d *Dataset) GetInt(tag Tag) (int, bool) {
	if v, ok := d.GetUint16(tag); ok {
		return int(v), true
	}
	if v, ok := d.GetUint32(tag); ok {
		return int(v), true
	}
	s := d.GetString(tag)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// GetTags returns the values of an AT element.
func (d *Dataset) GetTags(tag Tag) []Tag {
	el, ok := d.Search(tag)
	if !ok {
		return nil
	}
	switch v := el.Value.(type) {
	case Tag:
		return []Tag{v}
	case []Tag:
		return v
	}
	return nil
}

// GetSequence returns the items of an SQ element.
func (d *Dataset) GetSequence(tag Tag) []*Dataset {
	el, ok := d.Search(tag)
	if !ok {
		return nil
	}
	items, _ := el.Value.([]*Dataset)
	return items
}

// String renders one element per line, nested items indented.
func (d *Dataset) String() string {
	var sb strings.Builder
	d.dump(&sb, "")
	return sb.String()
}

func (d *Dataset) dump(sb *strings.Builder, indent string) {
	for _, el := range d.Elements() {
		fmt.Fprintf(sb, "%s%s %s %-32s ", indent, el.Tag, el.VR, Keyword(el.Tag))
		switch v := el.Value.(type) {
		case []*Dataset:
			fmt.Fprintf(sb, "(%d items)\n", len(v))
			for _, item := range v {
				item.dump(sb, indent+"  ")
			}
			continue
		case []byte:
			fmt.Fprintf(sb, "(%d bytes)", len(v))
		case Fragments:
			fmt.Fprintf(sb, "(%d fragments)", len(v))
		case string:
			fmt.Fprintf(sb, "[%s]", strings.TrimRight(v, "\x00 "))
		default:
			fmt.Fprintf(sb, "%v", v)
		}
		sb.WriteByte('\n')
	}
}
