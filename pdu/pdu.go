// Package pdu implements the DICOM upper layer: PDU framing, association
// negotiation and a TCP connection that carries DIMSE PDVs.
package pdu

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// PDU types
const (
	TypeAssociateRQ = types.TypeAssociateRQ
	TypeAssociateAC = types.TypeAssociateAC
	TypeAssociateRJ = types.TypeAssociateRJ
	TypePDataTF     = types.TypePDataTF
	TypeReleaseRQ   = types.TypeReleaseRQ
	TypeReleaseRP   = types.TypeReleaseRP
	TypeAbort       = types.TypeAbort
)

// DefaultMaxPDULength is proposed and accepted when nothing else is configured.
const DefaultMaxPDULength = 16384

// maxReadPDULength bounds the PDUs we are willing to buffer.
const maxReadPDULength = 64 << 20

// PDU represents a Protocol Data Unit
type PDU struct {
	Type   byte
	Length uint32
	Data   []byte
}

// ReadPDU reads a complete PDU.
func ReadPDU(r io.Reader) (*PDU, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])
	if pduLength > maxReadPDULength {
		return nil, dimseerrors.NewPDUError(pduType, fmt.Sprintf("length %d exceeds limit", pduLength))
	}

	data := make([]byte, pduLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read PDU data: %w", err)
	}
	return &PDU{Type: pduType, Length: pduLength, Data: data}, nil
}

// Bytes renders the PDU with its 6 byte header.
func (p *PDU) Bytes() []byte {
	out := make([]byte, 6+len(p.Data))
	out[0] = p.Type
	binary.BigEndian.PutUint32(out[2:6], uint32(len(p.Data)))
	copy(out[6:], p.Data)
	return out
}

func newPDU(pduType byte, data []byte) *PDU {
	return &PDU{Type: pduType, Length: uint32(len(data)), Data: data}
}

// Message control header bits.
const (
	pdvCommand byte = 0x01
	pdvLast    byte = 0x02
)

// EncodePDataTF wraps PDVs into one P-DATA-TF PDU.
func EncodePDataTF(pdvs ...dimse.PDV) *PDU {
	size := 0
	for _, pdv := range pdvs {
		size += 6 + len(pdv.Data)
	}
	data := make([]byte, 0, size)
	for _, pdv := range pdvs {
		var hdr byte
		if pdv.Command {
			hdr |= pdvCommand
		}
		if pdv.Last {
			hdr |= pdvLast
		}
		data = binary.BigEndian.AppendUint32(data, uint32(len(pdv.Data)+2))
		data = append(data, pdv.ContextID, hdr)
		data = append(data, pdv.Data...)
	}
	return newPDU(TypePDataTF, data)
}

// DecodePDataTF splits the variable field of a P-DATA-TF PDU into its PDVs.
func DecodePDataTF(data []byte) ([]dimse.PDV, error) {
	var pdvs []dimse.PDV
	for off := 0; off < len(data); {
		if off+6 > len(data) {
			return nil, dimseerrors.NewPDUError(TypePDataTF, "truncated PDV header")
		}
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		if n < 2 || off+4+n > len(data) {
			return nil, dimseerrors.NewPDUError(TypePDataTF, fmt.Sprintf("PDV length %d out of range", n))
		}
		hdr := data[off+5]
		pdvs = append(pdvs, dimse.PDV{
			ContextID: data[off+4],
			Data:      data[off+6 : off+4+n],
			Command:   hdr&pdvCommand != 0,
			Last:      hdr&pdvLast != 0,
		})
		off += 4 + n
	}
	if len(pdvs) == 0 {
		return nil, dimseerrors.NewPDUError(TypePDataTF, "no PDV")
	}
	return pdvs, nil
}

// Abort sources.
const (
	AbortSourceServiceUser     byte = 0x00
	AbortSourceServiceProvider byte = 0x02
)

// Abort reasons used by the provider.
const (
	AbortReasonNotSpecified   byte = 0x00
	AbortReasonUnexpectedPDU  byte = 0x02
	AbortReasonInvalidPDUItem byte = 0x06
)

func encodeAbort(source, reason byte) *PDU {
	return newPDU(TypeAbort, []byte{0, 0, source, reason})
}

func decodeAbort(data []byte) *dimseerrors.AbortError {
	if len(data) < 4 {
		return dimseerrors.NewAbortError(AbortSourceServiceProvider, AbortReasonNotSpecified)
	}
	return dimseerrors.NewAbortError(data[2], data[3])
}

func encodeRelease(pduType byte) *PDU {
	return newPDU(pduType, make([]byte, 4))
}
