package dimse

import (
	"fmt"
	"strings"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// IsDataSetPresent reports whether a data set unit follows msg's command.
func IsDataSetPresent(msg Message) bool {
	return msg.dataSetType() != types.DataSetTypeNull
}

// Validate checks the Command Data Set Type rules before anything is sent
// or accepted.
func Validate(msg Message) error {
	if msg == nil {
		return dimseerrors.New(dimseerrors.BadMessage, "nil message")
	}
	switch msg.(type) {
	case *EchoRQ, *EchoRSP, *CancelRQ:
		if IsDataSetPresent(msg) {
			return dimseerrors.New(dimseerrors.BadMessage, "%s must not carry a data set", msg.Command())
		}
	case *StoreRQ, *FindRQ, *MoveRQ, *GetRQ:
		if !IsDataSetPresent(msg) {
			return dimseerrors.New(dimseerrors.BadMessage, "%s requires a data set", msg.Command())
		}
	}
	return nil
}

// commandBuilder accumulates command elements; the first failure sticks.
type commandBuilder struct {
	ds  *dicom.Dataset
	err error
}

func (b *commandBuilder) us(tag dicom.Tag, v uint16) {
	b.ds.AddElement(tag, dicom.VR_US, v)
}

func (b *commandBuilder) uid(tag dicom.Tag, v string) {
	if v == "" && b.err == nil {
		b.err = dimseerrors.New(dimseerrors.BuildFailed, "missing %s", dicom.Keyword(tag))
		return
	}
	b.ds.AddElement(tag, dicom.VR_UI, v)
}

func (b *commandBuilder) ae(tag dicom.Tag, v string) {
	if v == "" && b.err == nil {
		b.err = dimseerrors.New(dimseerrors.BuildFailed, "missing %s", dicom.Keyword(tag))
		return
	}
	b.ds.AddElement(tag, dicom.VR_AE, v)
}

func (b *commandBuilder) optUID(opts, bit Opts, tag dicom.Tag, v string) {
	if opts.Has(bit) {
		b.uid(tag, v)
	}
}

func (b *commandBuilder) optUS(opts, bit Opts, tag dicom.Tag, v uint16) {
	if opts.Has(bit) {
		b.us(tag, v)
	}
}

func (b *commandBuilder) header(cmd types.CommandField, idTag dicom.Tag, id, dataSetType uint16) {
	b.ds.AddElement(dicom.CommandGroupLength, dicom.VR_UL, uint32(0))
	b.us(dicom.CommandField, uint16(cmd))
	b.us(idTag, id)
	b.us(dicom.CommandDataSetType, dataSetType)
}

func (b *commandBuilder) request(cmd types.CommandField, id, dataSetType uint16) {
	b.header(cmd, dicom.MessageID, id, dataSetType)
}

func (b *commandBuilder) response(cmd types.CommandField, id, dataSetType, status uint16) {
	b.header(cmd, dicom.MessageIDBeingRespondedTo, id, dataSetType)
	b.us(dicom.Status, status)
}

func (b *commandBuilder) subOperations(opts Opts, s SubOperations) {
	b.optUS(opts, OptRemaining, dicom.NumberOfRemainingSuboperations, s.Remaining)
	b.optUS(opts, OptCompleted, dicom.NumberOfCompletedSuboperations, s.Completed)
	b.optUS(opts, OptFailed, dicom.NumberOfFailedSuboperations, s.Failed)
	b.optUS(opts, OptWarning, dicom.NumberOfWarningSuboperations, s.Warning)
}

// BuildCommand renders msg as a command set. (0000,0000) is present with a
// zero value; the encoder fills in the real length when the set is sent.
func BuildCommand(msg Message) (*dicom.Dataset, error) {
	b := &commandBuilder{ds: dicom.NewDataset()}
	switch m := msg.(type) {
	case *EchoRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
	case *EchoRSP:
		b.response(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status)
		b.optUID(m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
	case *StoreRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.us(dicom.Priority, m.Priority)
		b.uid(dicom.AffectedSOPInstanceUID, m.AffectedSOPInstanceUID)
		if m.Opts.Has(OptMoveOriginatorAETitle) {
			b.ae(dicom.MoveOriginatorAETitle, m.MoveOriginatorAETitle)
		}
		b.optUS(m.Opts, OptMoveOriginatorMessageID, dicom.MoveOriginatorMessageID, m.MoveOriginatorMessageID)
	case *StoreRSP:
		b.response(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status)
		b.optUID(m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.optUID(m.Opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID, m.AffectedSOPInstanceUID)
	case *FindRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.us(dicom.Priority, m.Priority)
	case *FindRSP:
		b.response(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status)
		b.optUID(m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
	case *GetRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.us(dicom.Priority, m.Priority)
	case *GetRSP:
		b.response(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status)
		b.optUID(m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.subOperations(m.Opts, m.SubOperations)
	case *MoveRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.us(dicom.Priority, m.Priority)
		b.ae(dicom.MoveDestination, m.MoveDestination)
	case *MoveRSP:
		b.response(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status)
		b.optUID(m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.subOperations(m.Opts, m.SubOperations)
	case *CancelRQ:
		b.header(m.Command(), dicom.MessageIDBeingRespondedTo, m.MessageIDBeingRespondedTo, m.DataSetType)
	case *NEventReportRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.uid(dicom.AffectedSOPInstanceUID, m.AffectedSOPInstanceUID)
		b.us(dicom.EventTypeID, m.EventTypeID)
	case *NEventReportRSP:
		b.response(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status)
		b.optUID(m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.optUID(m.Opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID, m.AffectedSOPInstanceUID)
		b.optUS(m.Opts, OptEventTypeID, dicom.EventTypeID, m.EventTypeID)
	case *NGetRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.RequestedSOPClassUID, m.RequestedSOPClassUID)
		b.uid(dicom.RequestedSOPInstanceUID, m.RequestedSOPInstanceUID)
		if len(m.AttributeIdentifierList) > 0 {
			b.ds.AddElement(dicom.AttributeIdentifierList, dicom.VR_AT, append([]dicom.Tag(nil), m.AttributeIdentifierList...))
		}
	case *NGetRSP:
		b.normalizedResponse(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status, m.Opts, m.AffectedSOPClassUID, m.AffectedSOPInstanceUID)
	case *NSetRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.RequestedSOPClassUID, m.RequestedSOPClassUID)
		b.uid(dicom.RequestedSOPInstanceUID, m.RequestedSOPInstanceUID)
	case *NSetRSP:
		b.normalizedResponse(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status, m.Opts, m.AffectedSOPClassUID, m.AffectedSOPInstanceUID)
	case *NActionRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.RequestedSOPClassUID, m.RequestedSOPClassUID)
		b.uid(dicom.RequestedSOPInstanceUID, m.RequestedSOPInstanceUID)
		b.us(dicom.ActionTypeID, m.ActionTypeID)
	case *NActionRSP:
		b.normalizedResponse(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status, m.Opts, m.AffectedSOPClassUID, m.AffectedSOPInstanceUID)
		b.optUS(m.Opts, OptActionTypeID, dicom.ActionTypeID, m.ActionTypeID)
	case *NCreateRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.AffectedSOPClassUID, m.AffectedSOPClassUID)
		b.optUID(m.Opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID, m.AffectedSOPInstanceUID)
	case *NCreateRSP:
		b.normalizedResponse(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status, m.Opts, m.AffectedSOPClassUID, m.AffectedSOPInstanceUID)
	case *NDeleteRQ:
		b.request(m.Command(), m.MessageID, m.DataSetType)
		b.uid(dicom.RequestedSOPClassUID, m.RequestedSOPClassUID)
		b.uid(dicom.RequestedSOPInstanceUID, m.RequestedSOPInstanceUID)
	case *NDeleteRSP:
		b.normalizedResponse(m.Command(), m.MessageIDBeingRespondedTo, m.DataSetType, m.Status, m.Opts, m.AffectedSOPClassUID, m.AffectedSOPInstanceUID)
	default:
		return nil, dimseerrors.New(dimseerrors.BuildFailed, "unsupported message type %T", msg)
	}
	if b.err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Command(), b.err)
	}
	return b.ds, nil
}

func (b *commandBuilder) normalizedResponse(cmd types.CommandField, id, dataSetType, status uint16, opts Opts, class, instance string) {
	b.response(cmd, id, dataSetType, status)
	b.optUID(opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID, class)
	b.optUID(opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID, instance)
}

// commandParser consumes elements from a working copy of the command set.
type commandParser struct {
	ds  *dicom.Dataset
	err error
}

func (p *commandParser) missing(tag dicom.Tag) {
	if p.err == nil {
		p.err = dimseerrors.New(dimseerrors.ParseFailed, "missing %s %s", dicom.Keyword(tag), tag)
	}
}

func (p *commandParser) take(tag dicom.Tag) (*dicom.Element, bool) {
	el, ok := p.ds.Search(tag)
	if ok {
		p.ds.Remove(tag)
	}
	return el, ok
}

func (p *commandParser) usValue(tag dicom.Tag, el *dicom.Element) (uint16, bool) {
	switch v := el.Value.(type) {
	case uint16:
		return v, true
	case []uint16:
		if len(v) == 1 {
			return v[0], true
		}
	}
	if p.err == nil {
		p.err = dimseerrors.New(dimseerrors.ParseFailed, "%s %s is not a single US value", dicom.Keyword(tag), tag)
	}
	return 0, false
}

func (p *commandParser) us(tag dicom.Tag) uint16 {
	el, ok := p.take(tag)
	if !ok {
		p.missing(tag)
		return 0
	}
	v, _ := p.usValue(tag, el)
	return v
}

func (p *commandParser) optUS(opts *Opts, bit Opts, tag dicom.Tag) uint16 {
	el, ok := p.take(tag)
	if !ok {
		return 0
	}
	v, ok := p.usValue(tag, el)
	if ok {
		*opts |= bit
	}
	return v
}

func (p *commandParser) str(tag dicom.Tag) string {
	el, ok := p.take(tag)
	if !ok {
		p.missing(tag)
		return ""
	}
	return stringValue(el)
}

func (p *commandParser) optStr(opts *Opts, bit Opts, tag dicom.Tag) string {
	el, ok := p.take(tag)
	if !ok {
		return ""
	}
	*opts |= bit
	return stringValue(el)
}

func stringValue(el *dicom.Element) string {
	switch v := el.Value.(type) {
	case string:
		return strings.TrimRight(strings.TrimSpace(v), "\x00")
	case []string:
		return strings.TrimSpace(strings.Join(v, "\\"))
	}
	return ""
}

// ParseCommand decodes a received command set. Elements not consumed by the
// variant are returned as status detail, or nil when nothing is left. cmd is
// not modified.
func ParseCommand(cmd *dicom.Dataset) (Message, *dicom.Dataset, error) {
	if cmd == nil {
		return nil, nil, dimseerrors.New(dimseerrors.ParseFailed, "empty command set")
	}
	p := &commandParser{ds: cmd.Copy()}
	p.ds.Remove(dicom.CommandGroupLength)

	field := types.CommandField(p.us(dicom.CommandField))
	if p.err != nil {
		return nil, nil, p.err
	}

	var msg Message
	switch field {
	case types.CEchoRQ:
		m := &EchoRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		msg = m
	case types.CEchoRSP:
		m := &EchoRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID = p.optStr(&m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID)
		msg = m
	case types.CStoreRQ:
		m := &StoreRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		m.Priority = p.us(dicom.Priority)
		m.AffectedSOPInstanceUID = p.str(dicom.AffectedSOPInstanceUID)
		m.MoveOriginatorAETitle = p.optStr(&m.Opts, OptMoveOriginatorAETitle, dicom.MoveOriginatorAETitle)
		m.MoveOriginatorMessageID = p.optUS(&m.Opts, OptMoveOriginatorMessageID, dicom.MoveOriginatorMessageID)
		msg = m
	case types.CStoreRSP:
		m := &StoreRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID = p.optStr(&m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID)
		m.AffectedSOPInstanceUID = p.optStr(&m.Opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID)
		msg = m
	case types.CFindRQ:
		m := &FindRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		m.Priority = p.us(dicom.Priority)
		msg = m
	case types.CFindRSP:
		m := &FindRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID = p.optStr(&m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID)
		msg = m
	case types.CGetRQ:
		m := &GetRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		m.Priority = p.us(dicom.Priority)
		msg = m
	case types.CGetRSP:
		m := &GetRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID = p.optStr(&m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID)
		m.SubOperations = p.subOperations(&m.Opts)
		msg = m
	case types.CMoveRQ:
		m := &MoveRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		m.Priority = p.us(dicom.Priority)
		m.MoveDestination = p.str(dicom.MoveDestination)
		msg = m
	case types.CMoveRSP:
		m := &MoveRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID = p.optStr(&m.Opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID)
		m.SubOperations = p.subOperations(&m.Opts)
		msg = m
	case types.CCancelRQ:
		msg = &CancelRQ{
			MessageIDBeingRespondedTo: p.us(dicom.MessageIDBeingRespondedTo),
			DataSetType:               p.us(dicom.CommandDataSetType),
		}
	case types.NEventReportRQ:
		m := &NEventReportRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		m.AffectedSOPInstanceUID = p.str(dicom.AffectedSOPInstanceUID)
		m.EventTypeID = p.us(dicom.EventTypeID)
		msg = m
	case types.NEventReportRSP:
		m := &NEventReportRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID, m.AffectedSOPInstanceUID = p.affected(&m.Opts)
		m.EventTypeID = p.optUS(&m.Opts, OptEventTypeID, dicom.EventTypeID)
		msg = m
	case types.NGetRQ:
		m := &NGetRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.RequestedSOPClassUID, m.RequestedSOPInstanceUID = p.requested()
		if el, ok := p.take(dicom.AttributeIdentifierList); ok {
			switch v := el.Value.(type) {
			case dicom.Tag:
				m.AttributeIdentifierList = []dicom.Tag{v}
			case []dicom.Tag:
				m.AttributeIdentifierList = v
			}
		}
		msg = m
	case types.NGetRSP:
		m := &NGetRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID, m.AffectedSOPInstanceUID = p.affected(&m.Opts)
		msg = m
	case types.NSetRQ:
		m := &NSetRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.RequestedSOPClassUID, m.RequestedSOPInstanceUID = p.requested()
		msg = m
	case types.NSetRSP:
		m := &NSetRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID, m.AffectedSOPInstanceUID = p.affected(&m.Opts)
		msg = m
	case types.NActionRQ:
		m := &NActionRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.RequestedSOPClassUID, m.RequestedSOPInstanceUID = p.requested()
		m.ActionTypeID = p.us(dicom.ActionTypeID)
		msg = m
	case types.NActionRSP:
		m := &NActionRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID, m.AffectedSOPInstanceUID = p.affected(&m.Opts)
		m.ActionTypeID = p.optUS(&m.Opts, OptActionTypeID, dicom.ActionTypeID)
		msg = m
	case types.NCreateRQ:
		m := &NCreateRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.AffectedSOPClassUID = p.str(dicom.AffectedSOPClassUID)
		m.AffectedSOPInstanceUID = p.optStr(&m.Opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID)
		msg = m
	case types.NCreateRSP:
		m := &NCreateRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID, m.AffectedSOPInstanceUID = p.affected(&m.Opts)
		msg = m
	case types.NDeleteRQ:
		m := &NDeleteRQ{MessageID: p.us(dicom.MessageID), DataSetType: p.us(dicom.CommandDataSetType)}
		m.RequestedSOPClassUID, m.RequestedSOPInstanceUID = p.requested()
		msg = m
	case types.NDeleteRSP:
		m := &NDeleteRSP{}
		m.MessageIDBeingRespondedTo, m.DataSetType, m.Status = p.responseHeader()
		m.AffectedSOPClassUID, m.AffectedSOPInstanceUID = p.affected(&m.Opts)
		msg = m
	default:
		return nil, nil, dimseerrors.New(dimseerrors.BadCommandType, "unknown command field %s", field)
	}
	if p.err != nil {
		return nil, nil, fmt.Errorf("%s: %w", field, p.err)
	}

	var detail *dicom.Dataset
	if p.ds.Len() > 0 {
		detail = p.ds
	}
	return msg, detail, nil
}

func (p *commandParser) responseHeader() (id, dataSetType, status uint16) {
	return p.us(dicom.MessageIDBeingRespondedTo), p.us(dicom.CommandDataSetType), p.us(dicom.Status)
}

func (p *commandParser) affected(opts *Opts) (class, instance string) {
	class = p.optStr(opts, OptAffectedSOPClassUID, dicom.AffectedSOPClassUID)
	instance = p.optStr(opts, OptAffectedSOPInstanceUID, dicom.AffectedSOPInstanceUID)
	return class, instance
}

func (p *commandParser) requested() (class, instance string) {
	return p.str(dicom.RequestedSOPClassUID), p.str(dicom.RequestedSOPInstanceUID)
}

func (p *commandParser) subOperations(opts *Opts) SubOperations {
	return SubOperations{
		Remaining: p.optUS(opts, OptRemaining, dicom.NumberOfRemainingSuboperations),
		Completed: p.optUS(opts, OptCompleted, dicom.NumberOfCompletedSuboperations),
		Failed:    p.optUS(opts, OptFailed, dicom.NumberOfFailedSuboperations),
		Warning:   p.optUS(opts, OptWarning, dicom.NumberOfWarningSuboperations),
	}
}

func describe(msg Message) string {
	ds, err := BuildCommand(msg)
	if err != nil {
		return fmt.Sprintf("%s (incomplete: %v)", msg.Command(), err)
	}
	ds.Remove(dicom.CommandGroupLength)
	return fmt.Sprintf("%s\n%s", msg.Command(), ds)
}
