package dimse

import (
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Message is one DIMSE primitive. The set of implementations is closed; each
// variant carries only the fields its command defines.
type Message interface {
	Command() types.CommandField
	String() string
	dataSetType() uint16
}

// Request is a message that carries its own Message ID.
type Request interface {
	Message
	ID() uint16
}

// Response is a message answering an earlier request.
type Response interface {
	Message
	RespondsTo() uint16
	StatusCode() uint16
}

// Opts records which optional fields of a message are present. Bit meanings
// are per variant; see the constants below.
type Opts uint16

const (
	// Responses: (0000,0002) and (0000,1000).
	OptAffectedSOPClassUID    Opts = 0x0001
	OptAffectedSOPInstanceUID Opts = 0x0002

	// C-STORE-RQ: (0000,1030) and (0000,1031).
	OptMoveOriginatorAETitle   Opts = 0x0001
	OptMoveOriginatorMessageID Opts = 0x0002

	// C-GET-RSP and C-MOVE-RSP sub-operation counters.
	OptRemaining Opts = 0x0002
	OptCompleted Opts = 0x0004
	OptFailed    Opts = 0x0008
	OptWarning   Opts = 0x0010

	// N-EVENT-REPORT-RSP (0000,1002) and N-ACTION-RSP (0000,1008).
	OptEventTypeID  Opts = 0x0004
	OptActionTypeID Opts = 0x0004
)

// Has reports whether every bit of o2 is set.
func (o Opts) Has(o2 Opts) bool {
	return o&o2 == o2
}

// EchoRQ is C-ECHO-RQ.
type EchoRQ struct {
	MessageID           uint16
	AffectedSOPClassUID string
	DataSetType         uint16
}

// EchoRSP is C-ECHO-RSP.
type EchoRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

// StoreRQ is C-STORE-RQ.
type StoreRQ struct {
	MessageID               uint16
	AffectedSOPClassUID     string
	AffectedSOPInstanceUID  string
	Priority                uint16
	DataSetType             uint16
	MoveOriginatorAETitle   string
	MoveOriginatorMessageID uint16
	Opts                    Opts
}

// StoreRSP is C-STORE-RSP.
type StoreRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

// FindRQ is C-FIND-RQ.
type FindRQ struct {
	MessageID           uint16
	AffectedSOPClassUID string
	Priority            uint16
	DataSetType         uint16
}

// FindRSP is C-FIND-RSP. Pending responses carry an identifier data set.
type FindRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

// GetRQ is C-GET-RQ.
type GetRQ struct {
	MessageID           uint16
	AffectedSOPClassUID string
	Priority            uint16
	DataSetType         uint16
}

// SubOperations are the counters reported by C-GET and C-MOVE responses.
type SubOperations struct {
	Remaining uint16
	Completed uint16
	Failed    uint16
	Warning   uint16
}

// GetRSP is C-GET-RSP.
type GetRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	DataSetType               uint16
	Status                    uint16
	SubOperations
	Opts Opts
}

// MoveRQ is C-MOVE-RQ.
type MoveRQ struct {
	MessageID           uint16
	AffectedSOPClassUID string
	Priority            uint16
	DataSetType         uint16
	MoveDestination     string
}

// MoveRSP is C-MOVE-RSP.
type MoveRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	DataSetType               uint16
	Status                    uint16
	SubOperations
	Opts Opts
}

// CancelRQ is C-CANCEL-RQ.
type CancelRQ struct {
	MessageIDBeingRespondedTo uint16
	DataSetType               uint16
}

// NEventReportRQ is N-EVENT-REPORT-RQ.
type NEventReportRQ struct {
	MessageID              uint16
	AffectedSOPClassUID    string
	AffectedSOPInstanceUID string
	DataSetType            uint16
	EventTypeID            uint16
}

// NEventReportRSP is N-EVENT-REPORT-RSP.
type NEventReportRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	EventTypeID               uint16
	Opts                      Opts
}

// NGetRQ is N-GET-RQ. An empty AttributeIdentifierList requests every attribute.
type NGetRQ struct {
	MessageID               uint16
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	DataSetType             uint16
	AttributeIdentifierList []dicom.Tag
}

// NGetRSP is N-GET-RSP.
type NGetRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

// NSetRQ is N-SET-RQ.
type NSetRQ struct {
	MessageID               uint16
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	DataSetType             uint16
}

// NSetRSP is N-SET-RSP.
type NSetRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

// NActionRQ is N-ACTION-RQ.
type NActionRQ struct {
	MessageID               uint16
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	DataSetType             uint16
	ActionTypeID            uint16
}

// NActionRSP is N-ACTION-RSP.
type NActionRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	ActionTypeID              uint16
	Opts                      Opts
}

// NCreateRQ is N-CREATE-RQ. The instance UID is optional; the performer
// assigns one when it is absent.
type NCreateRQ struct {
	MessageID              uint16
	AffectedSOPClassUID    string
	AffectedSOPInstanceUID string
	DataSetType            uint16
	Opts                   Opts
}

// NCreateRSP is N-CREATE-RSP.
type NCreateRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

// NDeleteRQ is N-DELETE-RQ.
type NDeleteRQ struct {
	MessageID               uint16
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	DataSetType             uint16
}

// NDeleteRSP is N-DELETE-RSP.
type NDeleteRSP struct {
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	DataSetType               uint16
	Status                    uint16
	Opts                      Opts
}

func (*EchoRQ) Command() types.CommandField          { return types.CEchoRQ }
func (*EchoRSP) Command() types.CommandField         { return types.CEchoRSP }
func (*StoreRQ) Command() types.CommandField         { return types.CStoreRQ }
func (*StoreRSP) Command() types.CommandField        { return types.CStoreRSP }
func (*FindRQ) Command() types.CommandField          { return types.CFindRQ }
func (*FindRSP) Command() types.CommandField         { return types.CFindRSP }
func (*GetRQ) Command() types.CommandField           { return types.CGetRQ }
func (*GetRSP) Command() types.CommandField          { return types.CGetRSP }
func (*MoveRQ) Command() types.CommandField          { return types.CMoveRQ }
func (*MoveRSP) Command() types.CommandField         { return types.CMoveRSP }
func (*CancelRQ) Command() types.CommandField        { return types.CCancelRQ }
func (*NEventReportRQ) Command() types.CommandField  { return types.NEventReportRQ }
func (*NEventReportRSP) Command() types.CommandField { return types.NEventReportRSP }
func (*NGetRQ) Command() types.CommandField          { return types.NGetRQ }
func (*NGetRSP) Command() types.CommandField         { return types.NGetRSP }
func (*NSetRQ) Command() types.CommandField          { return types.NSetRQ }
func (*NSetRSP) Command() types.CommandField         { return types.NSetRSP }
func (*NActionRQ) Command() types.CommandField       { return types.NActionRQ }
func (*NActionRSP) Command() types.CommandField      { return types.NActionRSP }
func (*NCreateRQ) Command() types.CommandField       { return types.NCreateRQ }
func (*NCreateRSP) Command() types.CommandField      { return types.NCreateRSP }
func (*NDeleteRQ) Command() types.CommandField       { return types.NDeleteRQ }
func (*NDeleteRSP) Command() types.CommandField      { return types.NDeleteRSP }

func (m *EchoRQ) dataSetType() uint16          { return m.DataSetType }
func (m *EchoRSP) dataSetType() uint16         { return m.DataSetType }
func (m *StoreRQ) dataSetType() uint16         { return m.DataSetType }
func (m *StoreRSP) dataSetType() uint16        { return m.DataSetType }
func (m *FindRQ) dataSetType() uint16          { return m.DataSetType }
func (m *FindRSP) dataSetType() uint16         { return m.DataSetType }
func (m *GetRQ) dataSetType() uint16           { return m.DataSetType }
func (m *GetRSP) dataSetType() uint16          { return m.DataSetType }
func (m *MoveRQ) dataSetType() uint16          { return m.DataSetType }
func (m *MoveRSP) dataSetType() uint16         { return m.DataSetType }
func (m *CancelRQ) dataSetType() uint16        { return m.DataSetType }
func (m *NEventReportRQ) dataSetType() uint16  { return m.DataSetType }
func (m *NEventReportRSP) dataSetType() uint16 { return m.DataSetType }
func (m *NGetRQ) dataSetType() uint16          { return m.DataSetType }
func (m *NGetRSP) dataSetType() uint16         { return m.DataSetType }
func (m *NSetRQ) dataSetType() uint16          { return m.DataSetType }
func (m *NSetRSP) dataSetType() uint16         { return m.DataSetType }
func (m *NActionRQ) dataSetType() uint16       { return m.DataSetType }
func (m *NActionRSP) dataSetType() uint16      { return m.DataSetType }
func (m *NCreateRQ) dataSetType() uint16       { return m.DataSetType }
func (m *NCreateRSP) dataSetType() uint16      { return m.DataSetType }
func (m *NDeleteRQ) dataSetType() uint16       { return m.DataSetType }
func (m *NDeleteRSP) dataSetType() uint16      { return m.DataSetType }

func (m *EchoRQ) ID() uint16         { return m.MessageID }
func (m *StoreRQ) ID() uint16        { return m.MessageID }
func (m *FindRQ) ID() uint16         { return m.MessageID }
func (m *GetRQ) ID() uint16          { return m.MessageID }
func (m *MoveRQ) ID() uint16         { return m.MessageID }
func (m *NEventReportRQ) ID() uint16 { return m.MessageID }
func (m *NGetRQ) ID() uint16         { return m.MessageID }
func (m *NSetRQ) ID() uint16         { return m.MessageID }
func (m *NActionRQ) ID() uint16      { return m.MessageID }
func (m *NCreateRQ) ID() uint16      { return m.MessageID }
func (m *NDeleteRQ) ID() uint16      { return m.MessageID }

func (m *EchoRSP) RespondsTo() uint16         { return m.MessageIDBeingRespondedTo }
func (m *StoreRSP) RespondsTo() uint16        { return m.MessageIDBeingRespondedTo }
func (m *FindRSP) RespondsTo() uint16         { return m.MessageIDBeingRespondedTo }
func (m *GetRSP) RespondsTo() uint16          { return m.MessageIDBeingRespondedTo }
func (m *MoveRSP) RespondsTo() uint16         { return m.MessageIDBeingRespondedTo }
func (m *NEventReportRSP) RespondsTo() uint16 { return m.MessageIDBeingRespondedTo }
func (m *NGetRSP) RespondsTo() uint16         { return m.MessageIDBeingRespondedTo }
func (m *NSetRSP) RespondsTo() uint16         { return m.MessageIDBeingRespondedTo }
func (m *NActionRSP) RespondsTo() uint16      { return m.MessageIDBeingRespondedTo }
func (m *NCreateRSP) RespondsTo() uint16      { return m.MessageIDBeingRespondedTo }
func (m *NDeleteRSP) RespondsTo() uint16      { return m.MessageIDBeingRespondedTo }

func (m *EchoRSP) StatusCode() uint16         { return m.Status }
func (m *StoreRSP) StatusCode() uint16        { return m.Status }
func (m *FindRSP) StatusCode() uint16         { return m.Status }
func (m *GetRSP) StatusCode() uint16          { return m.Status }
func (m *MoveRSP) StatusCode() uint16         { return m.Status }
func (m *NEventReportRSP) StatusCode() uint16 { return m.Status }
func (m *NGetRSP) StatusCode() uint16         { return m.Status }
func (m *NSetRSP) StatusCode() uint16         { return m.Status }
func (m *NActionRSP) StatusCode() uint16      { return m.Status }
func (m *NCreateRSP) StatusCode() uint16      { return m.Status }
func (m *NDeleteRSP) StatusCode() uint16      { return m.Status }

func (m *EchoRQ) String() string          { return describe(m) }
func (m *EchoRSP) String() string         { return describe(m) }
func (m *StoreRQ) String() string         { return describe(m) }
func (m *StoreRSP) String() string        { return describe(m) }
func (m *FindRQ) String() string          { return describe(m) }
func (m *FindRSP) String() string         { return describe(m) }
func (m *GetRQ) String() string           { return describe(m) }
func (m *GetRSP) String() string          { return describe(m) }
func (m *MoveRQ) String() string          { return describe(m) }
func (m *MoveRSP) String() string         { return describe(m) }
func (m *CancelRQ) String() string        { return describe(m) }
func (m *NEventReportRQ) String() string  { return describe(m) }
func (m *NEventReportRSP) String() string { return describe(m) }
func (m *NGetRQ) String() string          { return describe(m) }
func (m *NGetRSP) String() string         { return describe(m) }
func (m *NSetRQ) String() string          { return describe(m) }
func (m *NSetRSP) String() string         { return describe(m) }
func (m *NActionRQ) String() string       { return describe(m) }
func (m *NActionRSP) String() string      { return describe(m) }
func (m *NCreateRQ) String() string       { return describe(m) }
func (m *NCreateRSP) String() string      { return describe(m) }
func (m *NDeleteRQ) String() string       { return describe(m) }
func (m *NDeleteRSP) String() string      { return describe(m) }
