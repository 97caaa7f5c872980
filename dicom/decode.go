package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/caio-sobreiro/dimsenet/types"
)

// ErrMalformed is returned when encoded data does not follow the DICOM encoding rules.
var ErrMalformed = errors.New("dicom: malformed data set")

type decoder struct {
	data     []byte
	pos      int
	order    binary.ByteOrder
	explicit bool
}

// ParseDataset parses a dataset encoded in Explicit VR Little Endian.
func ParseDataset(data []byte) (*Dataset, error) {
	return ParseDatasetWithTransferSyntax(data, types.ExplicitVRLittleEndian)
}

// ParseDatasetWithTransferSyntax parses a dataset using the provided transfer syntax.
func ParseDatasetWithTransferSyntax(data []byte, transferSyntaxUID string) (*Dataset, error) {
	ts, ok := types.LookupTransferSyntax(transferSyntaxUID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransferSyntax, transferSyntaxUID)
	}
	if ts.Deflated {
		inflated, err := io.ReadAll(flate.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: inflate: %v", ErrMalformed, err)
		}
		data = inflated
	}
	d := &decoder{data: data, order: ts.ByteOrder, explicit: ts.ExplicitVR}
	ds, err := d.elements(len(data), false)
	if err != nil {
		return nil, err
	}
	ds.TransferSyntax = transferSyntaxUID
	return ds, nil
}

// Read parses a whole data set from r.
func Read(r io.Reader, transferSyntaxUID string) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseDatasetWithTransferSyntax(data, transferSyntaxUID)
}

func (d *decoder) fail(format string, args ...interface{}) error {
	return fmt.Errorf("%w: offset %d: %s", ErrMalformed, d.pos, fmt.Sprintf(format, args...))
}

func (d *decoder) need(n int) error {
	if n < 0 || d.pos+n > len(d.data) {
		return d.fail("need %d bytes, %d left", n, len(d.data)-d.pos)
	}
	return nil
}

func (d *decoder) uint16() uint16 {
	v := d.order.Uint16(d.data[d.pos:])
	d.pos += 2
	return v
}

func (d *decoder) uint32() uint32 {
	v := d.order.Uint32(d.data[d.pos:])
	d.pos += 4
	return v
}

func (d *decoder) tag() Tag {
	g := d.uint16()
	return Tag{Group: g, Element: d.uint16()}
}

// elements parses until end, or until an item delimiter when delimited is set.
func (d *decoder) elements(end int, delimited bool) (*Dataset, error) {
	ds := NewDataset()
	for d.pos < end {
		if err := d.need(8); err != nil {
			return nil, err
		}
		tag := d.tag()
		if tag == ItemDelimitationItemTag {
			d.pos += 4
			if !delimited {
				return nil, d.fail("unexpected item delimiter")
			}
			return ds, nil
		}
		el, err := d.element(tag)
		if err != nil {
			return nil, err
		}
		if err := ds.Insert(el.Tag, el.VR, el.Value, false); err != nil {
			return nil, d.fail("%v", err)
		}
	}
	if delimited {
		return nil, d.fail("missing item delimiter")
	}
	return ds, nil
}

func (d *decoder) element(tag Tag) (*Element, error) {
	var vr string
	var length uint32
	if d.explicit {
		if err := d.need(4); err != nil {
			return nil, err
		}
		vr = string(d.data[d.pos : d.pos+2])
		d.pos += 2
		if vr[0] < 'A' || vr[0] > 'Z' || vr[1] < 'A' || vr[1] > 'Z' {
			return nil, d.fail("bad VR %q for %s", vr, tag)
		}
		if hasLongLength(vr) {
			if err := d.need(6); err != nil {
				return nil, err
			}
			d.pos += 2
			length = d.uint32()
		} else {
			length = uint32(d.uint16())
		}
	} else {
		vr = LookupVR(tag)
		length = d.uint32()
	}

	if length == undefinedLength {
		switch {
		case tag == PixelData:
			frags, err := d.fragments()
			if err != nil {
				return nil, err
			}
			if vr != VR_OW {
				vr = VR_OB
			}
			return &Element{Tag: tag, VR: vr, Value: frags}, nil
		case vr == VR_SQ, vr == VR_UN:
			// undefined length UN content is implicit VR little endian
			explicit, order := d.explicit, d.order
			if vr == VR_UN {
				d.explicit, d.order = false, binary.LittleEndian
			}
			items, err := d.sequence(math.MaxInt)
			d.explicit, d.order = explicit, order
			if err != nil {
				return nil, err
			}
			return &Element{Tag: tag, VR: VR_SQ, Value: items}, nil
		}
		return nil, d.fail("undefined length on %s %s", tag, vr)
	}

	if err := d.need(int(length)); err != nil {
		return nil, err
	}
	if vr == VR_SQ {
		items, err := d.sequence(d.pos + int(length))
		if err != nil {
			return nil, err
		}
		return &Element{Tag: tag, VR: vr, Value: items}, nil
	}
	raw := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)
	value, err := d.value(vr, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return &Element{Tag: tag, VR: vr, Value: value}, nil
}

// sequence parses items up to end, or up to a sequence delimiter.
func (d *decoder) sequence(end int) ([]*Dataset, error) {
	items := []*Dataset{}
	for d.pos < end {
		if err := d.need(8); err != nil {
			if end == math.MaxInt {
				return nil, d.fail("missing sequence delimiter")
			}
			return nil, err
		}
		tag := d.tag()
		length := d.uint32()
		switch tag {
		case SequenceDelimitationItemTag:
			return items, nil
		case ItemTag:
		default:
			return nil, d.fail("expected item, found %s", tag)
		}
		var item *Dataset
		var err error
		if length == undefinedLength {
			item, err = d.elements(len(d.data), true)
		} else {
			if err := d.need(int(length)); err != nil {
				return nil, err
			}
			item, err = d.elements(d.pos+int(length), false)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if end == math.MaxInt {
		return nil, d.fail("missing sequence delimiter")
	}
	return items, nil
}

func (d *decoder) fragments() (Fragments, error) {
	frags := Fragments{}
	for {
		if err := d.need(8); err != nil {
			return nil, err
		}
		tag := d.tag()
		length := d.uint32()
		if tag == SequenceDelimitationItemTag {
			return frags, nil
		}
		if tag != ItemTag || length == undefinedLength {
			return nil, d.fail("bad fragment item %s", tag)
		}
		if err := d.need(int(length)); err != nil {
			return nil, err
		}
		frag := make([]byte, length)
		copy(frag, d.data[d.pos:])
		frags = append(frags, frag)
		d.pos += int(length)
	}
}

func (d *decoder) value(vr string, raw []byte) (interface{}, error) {
	switch kindOf(vr) {
	case textVR:
		if n := len(raw); n > 0 && (raw[n-1] == ' ' || raw[n-1] == 0) {
			raw = raw[:n-1]
		}
		return string(raw), nil
	case uidVR:
		if n := len(raw); n > 0 && (raw[n-1] == 0 || raw[n-1] == ' ') {
			raw = raw[:n-1]
		}
		return string(raw), nil
	case tagVR:
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("%w: AT length %d", ErrMalformed, len(raw))
		}
		tags := make([]Tag, len(raw)/4)
		for i := range tags {
			tags[i] = Tag{d.order.Uint16(raw[i*4:]), d.order.Uint16(raw[i*4+2:])}
		}
		if len(tags) == 1 {
			return tags[0], nil
		}
		return tags, nil
	case numberVR:
		return d.numbers(vr, raw)
	}
	out := append([]byte(nil), raw...)
	if d.order == binary.BigEndian {
		swapWords(out, wordSize(vr))
	}
	return out, nil
}

func (d *decoder) numbers(vr string, raw []byte) (interface{}, error) {
	size := wordSize(vr)
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %s length %d", ErrMalformed, vr, len(raw))
	}
	n := len(raw) / size
	var out interface{}
	switch vr {
	case VR_US:
		out = make([]uint16, n)
	case VR_UL:
		out = make([]uint32, n)
	case VR_SS:
		out = make([]int16, n)
	case VR_SL:
		out = make([]int32, n)
	case VR_FL:
		out = make([]float32, n)
	case VR_FD:
		out = make([]float64, n)
	}
	if err := binary.Read(bytes.NewReader(raw), d.order, out); err != nil {
		return nil, err
	}
	if n != 1 {
		return out, nil
	}
	switch v := out.(type) {
	case []uint16:
		return v[0], nil
	case []uint32:
		return v[0], nil
	case []int16:
		return v[0], nil
	case []int32:
		return v[0], nil
	case []float32:
		return v[0], nil
	case []float64:
		return v[0], nil
	}
	return out, nil
}
