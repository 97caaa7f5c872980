package pdu

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Item types of the association PDUs.
const (
	itemApplicationContext  byte = 0x10
	itemPresentationRQ      byte = 0x20
	itemPresentationAC      byte = 0x21
	itemAbstractSyntax      byte = 0x30
	itemTransferSyntax      byte = 0x40
	itemUserInformation     byte = 0x50
	itemMaxLength           byte = 0x51
	itemImplementationClass byte = 0x52
	itemImplementationName  byte = 0x55
)

// Implementation identification sent in the user information item.
const (
	ImplementationClassUID    = dicom.ImplementationClassUIDValue
	ImplementationVersionName = dicom.ImplementationVersionValue
)

// ProposedContext is a presentation context offered in an A-ASSOCIATE-RQ.
type ProposedContext struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

// AssociateRQ is the content of an A-ASSOCIATE-RQ PDU.
type AssociateRQ struct {
	CalledAETitle          string
	CallingAETitle         string
	ApplicationContext     string
	Contexts               []ProposedContext
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateAC is the content of an A-ASSOCIATE-AC PDU.
type AssociateAC struct {
	CalledAETitle          string
	CallingAETitle         string
	Contexts               []types.PresentationContext
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateRJ is the content of an A-ASSOCIATE-RJ PDU.
type AssociateRJ struct {
	Result byte
	Source dimseerrors.AssociationRejectSource
	Reason dimseerrors.AssociationRejectReason
}

func normalizeUID(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00 ")
}

func aeTitle(raw []byte) string {
	s := string(raw)
	if idx := strings.IndexByte(s, 0); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// appendItem appends an item with a 16 bit length.
func appendItem(buf []byte, itemType byte, value []byte) []byte {
	buf = append(buf, itemType, 0x00)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

// fixedFields renders protocol version, AE titles and the reserved block.
func fixedFields(called, calling string) []byte {
	f := make([]byte, 68)
	binary.BigEndian.PutUint16(f[0:2], 0x0001)
	copy(f[4:20], fmt.Sprintf("%-16.16s", called))
	copy(f[20:36], fmt.Sprintf("%-16.16s", calling))
	return f
}

func userInformation(maxPDU uint32, classUID, version string) []byte {
	var ui []byte
	ui = appendItem(ui, itemMaxLength, binary.BigEndian.AppendUint32(nil, maxPDU))
	if classUID == "" {
		classUID = ImplementationClassUID
	}
	ui = appendItem(ui, itemImplementationClass, []byte(classUID))
	if version == "" {
		version = ImplementationVersionName
	}
	ui = appendItem(ui, itemImplementationName, []byte(version))
	return ui
}

// Encode renders the A-ASSOCIATE-RQ PDU.
func (rq *AssociateRQ) Encode() *PDU {
	appContext := rq.ApplicationContext
	if appContext == "" {
		appContext = types.ApplicationContextUID
	}
	data := fixedFields(rq.CalledAETitle, rq.CallingAETitle)
	data = appendItem(data, itemApplicationContext, []byte(appContext))
	for _, pc := range rq.Contexts {
		item := []byte{pc.ID, 0, 0, 0}
		item = appendItem(item, itemAbstractSyntax, []byte(pc.AbstractSyntax))
		for _, ts := range pc.TransferSyntaxes {
			item = appendItem(item, itemTransferSyntax, []byte(ts))
		}
		data = appendItem(data, itemPresentationRQ, item)
	}
	data = appendItem(data, itemUserInformation, userInformation(rq.MaxPDULength, rq.ImplementationClassUID, rq.ImplementationVersion))
	return newPDU(TypeAssociateRQ, data)
}

// Encode renders the A-ASSOCIATE-AC PDU. Contexts are written in id order.
//
// Rejected contexts are left out: some peers refuse an AC that lists them.
func (ac *AssociateAC) Encode() *PDU {
	data := fixedFields(ac.CalledAETitle, ac.CallingAETitle)
	data = appendItem(data, itemApplicationContext, []byte(types.ApplicationContextUID))

	contexts := append([]types.PresentationContext(nil), ac.Contexts...)
	sort.Slice(contexts, func(i, j int) bool { return contexts[i].ID < contexts[j].ID })
	for _, pc := range contexts {
		if !pc.Accepted() {
			continue
		}
		item := []byte{pc.ID, 0, pc.Result, 0}
		item = appendItem(item, itemTransferSyntax, []byte(pc.TransferSyntax))
		data = appendItem(data, itemPresentationAC, item)
	}
	data = appendItem(data, itemUserInformation, userInformation(ac.MaxPDULength, ac.ImplementationClassUID, ac.ImplementationVersion))
	return newPDU(TypeAssociateAC, data)
}

// Encode renders the A-ASSOCIATE-RJ PDU.
func (rj *AssociateRJ) Encode() *PDU {
	result := rj.Result
	if result == 0 {
		result = 0x01
	}
	return newPDU(TypeAssociateRJ, []byte{0, result, byte(rj.Source), byte(rj.Reason)})
}

// Err converts the rejection to the error returned to the requestor.
func (rj *AssociateRJ) Err() *dimseerrors.AssociationError {
	err := dimseerrors.NewAssociationError(rj.Source, rj.Reason, "association rejected by peer")
	err.Result = rj.Result
	return err
}

// eachItem walks the items of a variable field.
func eachItem(data []byte, fn func(itemType byte, value []byte) error) error {
	for off := 0; off+4 <= len(data); {
		itemType := data[off]
		n := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		end := off + 4 + n
		if end > len(data) {
			return fmt.Errorf("item 0x%02x exceeds PDU length", itemType)
		}
		if err := fn(itemType, data[off+4:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}

func parseUserInformation(data []byte, maxPDU *uint32, classUID, version *string) error {
	return eachItem(data, func(itemType byte, value []byte) error {
		switch itemType {
		case itemMaxLength:
			if len(value) == 4 {
				*maxPDU = binary.BigEndian.Uint32(value)
			}
		case itemImplementationClass:
			*classUID = normalizeUID(value)
		case itemImplementationName:
			*version = normalizeUID(value)
		}
		return nil
	})
}

// DecodeAssociateRQ parses the variable field of an A-ASSOCIATE-RQ.
func DecodeAssociateRQ(data []byte) (*AssociateRQ, error) {
	if len(data) < 68 {
		return nil, dimseerrors.NewPDUError(TypeAssociateRQ, "association request too short")
	}
	rq := &AssociateRQ{
		CalledAETitle:  aeTitle(data[4:20]),
		CallingAETitle: aeTitle(data[20:36]),
	}
	err := eachItem(data[68:], func(itemType byte, value []byte) error {
		switch itemType {
		case itemApplicationContext:
			rq.ApplicationContext = normalizeUID(value)
		case itemPresentationRQ:
			pc, err := parseProposedContext(value)
			if err != nil {
				return err
			}
			rq.Contexts = append(rq.Contexts, pc)
		case itemUserInformation:
			return parseUserInformation(value, &rq.MaxPDULength, &rq.ImplementationClassUID, &rq.ImplementationVersion)
		}
		return nil
	})
	if err != nil {
		return nil, dimseerrors.NewPDUError(TypeAssociateRQ, err.Error())
	}
	return rq, nil
}

func parseProposedContext(data []byte) (ProposedContext, error) {
	if len(data) < 4 {
		return ProposedContext{}, fmt.Errorf("presentation context too short: %d", len(data))
	}
	pc := ProposedContext{ID: data[0]}
	err := eachItem(data[4:], func(itemType byte, value []byte) error {
		switch itemType {
		case itemAbstractSyntax:
			pc.AbstractSyntax = normalizeUID(value)
		case itemTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, normalizeUID(value))
		}
		return nil
	})
	if err != nil {
		return pc, err
	}
	if pc.AbstractSyntax == "" {
		return pc, fmt.Errorf("presentation context %d missing abstract syntax", pc.ID)
	}
	return pc, nil
}

// DecodeAssociateAC parses the variable field of an A-ASSOCIATE-AC. The
// abstract syntax of each context is taken from the proposal.
func DecodeAssociateAC(data []byte, proposed []ProposedContext) (*AssociateAC, error) {
	if len(data) < 68 {
		return nil, dimseerrors.NewPDUError(TypeAssociateAC, "association accept too short")
	}
	ac := &AssociateAC{
		CalledAETitle:  aeTitle(data[4:20]),
		CallingAETitle: aeTitle(data[20:36]),
	}
	seen := make(map[byte]types.PresentationContext)
	err := eachItem(data[68:], func(itemType byte, value []byte) error {
		switch itemType {
		case itemPresentationAC:
			if len(value) < 4 {
				return fmt.Errorf("presentation context result too short")
			}
			pc := types.PresentationContext{ID: value[0], Result: value[2]}
			if err := eachItem(value[4:], func(t byte, v []byte) error {
				if t == itemTransferSyntax {
					pc.TransferSyntax = normalizeUID(v)
				}
				return nil
			}); err != nil {
				return err
			}
			seen[pc.ID] = pc
		case itemUserInformation:
			return parseUserInformation(value, &ac.MaxPDULength, &ac.ImplementationClassUID, &ac.ImplementationVersion)
		}
		return nil
	})
	if err != nil {
		return nil, dimseerrors.NewPDUError(TypeAssociateAC, err.Error())
	}

	for _, p := range proposed {
		pc, ok := seen[p.ID]
		if !ok {
			pc = types.PresentationContext{ID: p.ID, Result: types.PresentationProviderRejection}
		}
		pc.AbstractSyntax = p.AbstractSyntax
		if pc.Result != types.PresentationAcceptance {
			pc.TransferSyntax = ""
		}
		ac.Contexts = append(ac.Contexts, pc)
	}
	return ac, nil
}

// DecodeAssociateRJ parses the variable field of an A-ASSOCIATE-RJ.
func DecodeAssociateRJ(data []byte) *AssociateRJ {
	if len(data) < 4 {
		return &AssociateRJ{Result: 0x01}
	}
	return &AssociateRJ{
		Result: data[1],
		Source: dimseerrors.AssociationRejectSource(data[2]),
		Reason: dimseerrors.AssociationRejectReason(data[3]),
	}
}
