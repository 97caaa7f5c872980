package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/caio-sobreiro/dimsenet/types"
)

var (
	// ErrUnsupportedTransferSyntax is returned for transfer syntaxes the codec does not know.
	ErrUnsupportedTransferSyntax = errors.New("dicom: unsupported transfer syntax")
	// ErrNotRepresentable is returned when a data set cannot be written in the requested syntax.
	ErrNotRepresentable = errors.New("dicom: data set cannot be represented in transfer syntax")
)

const undefinedLength uint32 = 0xFFFFFFFF

// GroupLengthPolicy controls (gggg,0000) elements on encode.
type GroupLengthPolicy int

const (
	// GroupLengthRecalc rewrites every group length present with the actual byte count.
	GroupLengthRecalc GroupLengthPolicy = iota
	// GroupLengthAsIs writes stored group length values unchanged.
	GroupLengthAsIs
	// GroupLengthAdd emits a computed group length for every group.
	GroupLengthAdd
	// GroupLengthRemove drops all group length elements.
	GroupLengthRemove
)

// EncodeOptions tunes data set encoding.
type EncodeOptions struct {
	GroupLength              GroupLengthPolicy
	UndefinedLengthSequences bool
}

// byteOrder is what binary.LittleEndian and binary.BigEndian both provide.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type encoder struct {
	order    byteOrder
	explicit bool
	opts     EncodeOptions
}

// CanWrite reports whether d can be encoded under tsUID without a pixel codec.
// Encapsulated pixel data only goes out in the syntax it arrived in; native
// pixel data never goes out under an encapsulated syntax.
func (d *Dataset) CanWrite(tsUID string) bool {
	ts, ok := types.LookupTransferSyntax(tsUID)
	if !ok {
		return false
	}
	el, ok := d.Search(PixelData)
	if !ok {
		return true
	}
	if _, encapsulated := el.Value.(Fragments); encapsulated {
		if !ts.Encapsulated {
			return false
		}
		return d.TransferSyntax == "" || d.TransferSyntax == tsUID
	}
	return !ts.Encapsulated
}

// Write encodes d to w under tsUID.
func Write(w io.Writer, d *Dataset, tsUID string, opts EncodeOptions) error {
	ts, ok := types.LookupTransferSyntax(tsUID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedTransferSyntax, tsUID)
	}
	if !d.CanWrite(tsUID) {
		return fmt.Errorf("%w: %s", ErrNotRepresentable, types.TransferSyntaxName(tsUID))
	}
	order, ok := ts.ByteOrder.(byteOrder)
	if !ok {
		return fmt.Errorf("%w: %s has no appendable byte order", ErrUnsupportedTransferSyntax, tsUID)
	}
	enc := &encoder{order: order, explicit: ts.ExplicitVR, opts: opts}
	data, err := enc.dataset(d)
	if err != nil {
		return err
	}
	if !ts.Deflated {
		_, err = w.Write(data)
		return err
	}
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	return fw.Close()
}

// EncodeDatasetWithTransferSyntax encodes a dataset using the provided transfer syntax.
func EncodeDatasetWithTransferSyntax(dataset *Dataset, transferSyntaxUID string) ([]byte, error) {
	if dataset == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := Write(&buf, dataset, transferSyntaxUID, EncodeOptions{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *encoder) dataset(d *Dataset) ([]byte, error) {
	elements := d.Elements()
	if e.opts.GroupLength == GroupLengthAsIs {
		return e.elements(elements)
	}

	var out []byte
	for i := 0; i < len(elements); {
		group := elements[i].Tag.Group
		j := i
		var stored *Element
		var body []*Element
		for ; j < len(elements) && elements[j].Tag.Group == group; j++ {
			if elements[j].Tag.IsGroupLength() {
				stored = elements[j]
				continue
			}
			body = append(body, elements[j])
		}
		i = j

		encoded, err := e.elements(body)
		if err != nil {
			return nil, err
		}
		writeLength := false
		switch e.opts.GroupLength {
		case GroupLengthRecalc:
			writeLength = stored != nil
		case GroupLengthAdd:
			writeLength = true
		}
		if writeLength {
			gl, err := e.element(&Element{Tag: Tag{group, 0x0000}, VR: VR_UL, Value: uint32(len(encoded))})
			if err != nil {
				return nil, err
			}
			out = append(out, gl...)
		}
		out = append(out, encoded...)
	}
	return out, nil
}

func (e *encoder) elements(elements []*Element) ([]byte, error) {
	var out []byte
	for _, el := range elements {
		b, err := e.element(el)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (e *encoder) element(el *Element) ([]byte, error) {
	vr := el.VR
	if vr == "" {
		vr = LookupVR(el.Tag)
	}
	value, undefined, err := e.value(el.Tag, vr, el.Value)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", el.Tag, err)
	}
	if _, ok := el.Value.(Fragments); ok && vr != VR_OB && vr != VR_OW {
		vr = VR_OB
	}

	length := uint32(len(value))
	if undefined {
		length = undefinedLength
	}

	out := e.tag(make([]byte, 0, 12+len(value)), el.Tag)
	switch {
	case !e.explicit:
		out = e.order.AppendUint32(out, length)
	case hasLongLength(vr):
		out = append(out, vr[0], vr[1], 0, 0)
		out = e.order.AppendUint32(out, length)
	default:
		if len(value) > math.MaxUint16 {
			return nil, fmt.Errorf("encoding %s: %d bytes exceed %s length field", el.Tag, len(value), vr)
		}
		out = append(out, vr[0], vr[1])
		out = e.order.AppendUint16(out, uint16(len(value)))
	}
	return append(out, value...), nil
}

func (e *encoder) tag(out []byte, t Tag) []byte {
	out = e.order.AppendUint16(out, t.Group)
	return e.order.AppendUint16(out, t.Element)
}

func (e *encoder) value(tag Tag, vr string, v interface{}) ([]byte, bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, false, nil
	case []*Dataset:
		b, err := e.sequence(val)
		return b, e.opts.UndefinedLengthSequences, err
	case Fragments:
		return e.fragments(val), true, nil
	}

	switch kindOf(vr) {
	case textVR, uidVR:
		s, err := textValue(v)
		if err != nil {
			return nil, false, err
		}
		if len(s)%2 == 1 {
			if kindOf(vr) == uidVR {
				s += "\x00"
			} else {
				s += " "
			}
		}
		return []byte(s), false, nil
	case tagVR:
		var tags []Tag
		switch val := v.(type) {
		case Tag:
			tags = []Tag{val}
		case []Tag:
			tags = val
		default:
			return nil, false, fmt.Errorf("AT value has type %T", v)
		}
		var out []byte
		for _, t := range tags {
			out = e.tag(out, t)
		}
		return out, false, nil
	case numberVR:
		b, err := e.numbers(vr, v)
		return b, false, err
	default:
		b, err := e.bulk(vr, v)
		return b, false, err
	}
}

func textValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []string:
		return strings.Join(val, "\\"), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("text value has type %T", v)
}

func (e *encoder) numbers(vr string, v interface{}) ([]byte, error) {
	if n, ok := v.(int); ok {
		switch vr {
		case VR_US:
			v = uint16(n)
		case VR_UL:
			v = uint32(n)
		case VR_SS:
			v = int16(n)
		case VR_SL:
			v = int32(n)
		case VR_FL:
			v = float32(n)
		case VR_FD:
			v = float64(n)
		}
	}
	var buf bytes.Buffer
	switch v.(type) {
	case uint16, []uint16, uint32, []uint32, int16, []int16, int32, []int32,
		float32, []float32, float64, []float64:
		if err := binary.Write(&buf, e.order, v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%s value has type %T", vr, v)
}

// bulk writes OB/OW-style values. []byte values are held in little endian
// word order and swapped for big endian syntaxes.
func (e *encoder) bulk(vr string, v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		out := append([]byte(nil), val...)
		if len(out)%2 == 1 {
			out = append(out, 0)
		}
		if e.order == binary.BigEndian {
			swapWords(out, wordSize(vr))
		}
		return out, nil
	case string:
		return e.bulk(vr, []byte(val))
	}
	return e.numbers(vr, v)
}

func (e *encoder) sequence(items []*Dataset) ([]byte, error) {
	var out []byte
	for _, item := range items {
		body, err := e.dataset(item)
		if err != nil {
			return nil, err
		}
		out = e.tag(out, ItemTag)
		if e.opts.UndefinedLengthSequences {
			out = e.order.AppendUint32(out, undefinedLength)
			out = append(out, body...)
			out = e.tag(out, ItemDelimitationItemTag)
			out = e.order.AppendUint32(out, 0)
			continue
		}
		out = e.order.AppendUint32(out, uint32(len(body)))
		out = append(out, body...)
	}
	if e.opts.UndefinedLengthSequences {
		out = e.tag(out, SequenceDelimitationItemTag)
		out = e.order.AppendUint32(out, 0)
	}
	return out, nil
}

func (e *encoder) fragments(frags Fragments) []byte {
	var out []byte
	for _, f := range frags {
		out = e.tag(out, ItemTag)
		n := len(f)
		out = e.order.AppendUint32(out, uint32(n+n%2))
		out = append(out, f...)
		if n%2 == 1 {
			out = append(out, 0)
		}
	}
	out = e.tag(out, SequenceDelimitationItemTag)
	return e.order.AppendUint32(out, 0)
}

func swapWords(b []byte, size int) {
	if size < 2 {
		return
	}
	for i := 0; i+size <= len(b); i += size {
		for l, r := i, i+size-1; l < r; l, r = l+1, r-1 {
			b[l], b[r] = b[r], b[l]
		}
	}
}
