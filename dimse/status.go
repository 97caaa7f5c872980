package dimse

import "fmt"

// Service selects the status code table used to interpret a response status.
type Service int

const (
	ServiceEcho Service = iota
	ServiceStore
	ServiceFind
	ServiceMove
	ServiceGet
	ServiceNormalized
)

func (s Service) String() string {
	switch s {
	case ServiceEcho:
		return "C-ECHO"
	case ServiceStore:
		return "C-STORE"
	case ServiceFind:
		return "C-FIND"
	case ServiceMove:
		return "C-MOVE"
	case ServiceGet:
		return "C-GET"
	case ServiceNormalized:
		return "N-*"
	}
	return fmt.Sprintf("Service(%d)", int(s))
}

// Category is the coarse meaning of a status code.
type Category int

const (
	Success Category = iota
	Pending
	Warning
	Cancel
	Failure
)

func (c Category) String() string {
	switch c {
	case Success:
		return "Success"
	case Pending:
		return "Pending"
	case Warning:
		return "Warning"
	case Cancel:
		return "Cancel"
	}
	return "Failure"
}

// Status codes used by the engine and the bundled services.
const (
	StatusSuccess                  uint16 = 0x0000
	StatusPending                  uint16 = 0xFF00
	StatusPendingWarning           uint16 = 0xFF01
	StatusCancel                   uint16 = 0xFE00
	StatusOutOfResources           uint16 = 0xA700
	StatusOutOfResourcesMatches    uint16 = 0xA701
	StatusOutOfResourcesSubOps     uint16 = 0xA702
	StatusSOPClassNotSupported     uint16 = 0xA800
	StatusMoveDestinationUnknown   uint16 = 0xA801
	StatusIdentifierDoesNotMatch   uint16 = 0xA900
	StatusUnableToProcess          uint16 = 0xC000
	StatusCoercionOfDataElements   uint16 = 0xB000
	StatusSubOpsCompleteWithErrors uint16 = 0xB000
	StatusElementsDiscarded        uint16 = 0xB006
	StatusDataSetDoesNotMatch      uint16 = 0xB007

	StatusNOptionalAttributesUnsupported uint16 = 0x0001
	StatusNNoSuchAttribute               uint16 = 0x0105
	StatusNInvalidAttributeValue         uint16 = 0x0106
	StatusNAttributeListError            uint16 = 0x0107
	StatusNProcessingFailure             uint16 = 0x0110
	StatusNDuplicateSOPInstance          uint16 = 0x0111
	StatusNNoSuchObjectInstance          uint16 = 0x0112
	StatusNNoSuchEventType               uint16 = 0x0113
	StatusNNoSuchArgument                uint16 = 0x0114
	StatusNInvalidArgumentValue          uint16 = 0x0115
	StatusNAttributeValueOutOfRange      uint16 = 0x0116
	StatusNInvalidObjectInstance         uint16 = 0x0117
	StatusNNoSuchSOPClass                uint16 = 0x0118
	StatusNClassInstanceConflict         uint16 = 0x0119
	StatusNMissingAttribute              uint16 = 0x0120
	StatusNMissingAttributeValue         uint16 = 0x0121
	StatusNSOPClassNotSupported          uint16 = 0x0122
	StatusNNoSuchAction                  uint16 = 0x0123
	StatusNNotAuthorized                 uint16 = 0x0124
	StatusNDuplicateInvocation           uint16 = 0x0210
	StatusNUnrecognizedOperation         uint16 = 0x0211
	StatusNMistypedArgument              uint16 = 0x0212
	StatusNResourceLimitation            uint16 = 0x0213
)

// IsPending reports whether a status keeps a composite exchange going.
func IsPending(status uint16) bool {
	return status&0xFF00 == 0xFF00
}

type statusEntry struct {
	category Category
	text     string
}

type statusTable struct {
	exact      map[uint16]statusEntry
	highByte   map[uint16]statusEntry
	highNibble map[uint16]statusEntry
}

var generalFailures = map[uint16]statusEntry{
	StatusNDuplicateInvocation:   {Failure, "Failure: Duplicate invocation"},
	StatusNUnrecognizedOperation: {Failure, "Failure: Unrecognized operation"},
	StatusNMistypedArgument:      {Failure, "Failure: Mistyped argument"},
	StatusNResourceLimitation:    {Failure, "Failure: Resource limitation"},
	StatusNSOPClassNotSupported:  {Failure, "Failure: SOP class not supported"},
}

var statusTables = map[Service]statusTable{
	ServiceEcho: {
		exact: generalFailures,
	},
	ServiceStore: {
		exact: map[uint16]statusEntry{
			StatusCoercionOfDataElements: {Warning, "Warning: Coercion of data elements"},
			StatusDataSetDoesNotMatch:    {Warning, "Warning: Data set does not match SOP class"},
			StatusElementsDiscarded:      {Warning, "Warning: Elements discarded"},
		},
		highByte: map[uint16]statusEntry{
			0xA700: {Failure, "Refused: Out of resources"},
			0xA800: {Failure, "Refused: SOP class not supported"},
			0xA900: {Failure, "Error: Data set does not match SOP class"},
		},
		highNibble: map[uint16]statusEntry{
			0xC000: {Failure, "Error: Cannot understand"},
		},
	},
	ServiceFind: {
		exact: map[uint16]statusEntry{
			StatusOutOfResources:         {Failure, "Refused: Out of resources"},
			StatusSOPClassNotSupported:   {Failure, "Refused: SOP class not supported"},
			StatusIdentifierDoesNotMatch: {Failure, "Failed: Identifier does not match SOP class"},
			StatusCancel:                 {Cancel, "Cancel: Matching terminated due to cancel request"},
			StatusPendingWarning:         {Pending, "Pending: Warning - unsupported optional keys"},
		},
		highByte: map[uint16]statusEntry{
			0xA700: {Failure, "Refused: Out of resources"},
			0xA800: {Failure, "Refused: SOP class not supported"},
			0xA900: {Failure, "Failed: Identifier does not match SOP class"},
		},
		highNibble: map[uint16]statusEntry{
			0xC000: {Failure, "Failed: Unable to process"},
		},
	},
	ServiceMove: {
		exact: map[uint16]statusEntry{
			StatusOutOfResourcesMatches:    {Failure, "Refused: Out of resources - unable to calculate number of matches"},
			StatusOutOfResourcesSubOps:     {Failure, "Refused: Out of resources - unable to perform sub-operations"},
			StatusSOPClassNotSupported:     {Failure, "Failed: SOP class not supported"},
			StatusMoveDestinationUnknown:   {Failure, "Failed: Move destination unknown"},
			StatusIdentifierDoesNotMatch:   {Failure, "Failed: Identifier does not match SOP class"},
			StatusCancel:                   {Cancel, "Cancel: Sub-operations terminated due to cancel indication"},
			StatusSubOpsCompleteWithErrors: {Warning, "Warning: Sub-operations complete - one or more failures"},
		},
		highNibble: map[uint16]statusEntry{
			0xC000: {Failure, "Failed: Unable to process"},
		},
	},
	ServiceGet: {
		exact: map[uint16]statusEntry{
			StatusOutOfResourcesMatches:    {Failure, "Refused: Out of resources - unable to calculate number of matches"},
			StatusOutOfResourcesSubOps:     {Failure, "Refused: Out of resources - unable to perform sub-operations"},
			StatusSOPClassNotSupported:     {Failure, "Failed: SOP class not supported"},
			StatusIdentifierDoesNotMatch:   {Failure, "Failed: Identifier does not match SOP class"},
			StatusCancel:                   {Cancel, "Cancel: Sub-operations terminated due to cancel indication"},
			StatusSubOpsCompleteWithErrors: {Warning, "Warning: Sub-operations complete - one or more failures"},
		},
		highNibble: map[uint16]statusEntry{
			0xC000: {Failure, "Failed: Unable to process"},
		},
	},
	ServiceNormalized: {
		exact: map[uint16]statusEntry{
			StatusNOptionalAttributesUnsupported: {Warning, "Warning: Requested optional attributes are not supported"},
			StatusNAttributeListError:            {Warning, "Warning: Attribute list error"},
			StatusNAttributeValueOutOfRange:      {Warning, "Warning: Attribute value out of range"},
			StatusNNoSuchAttribute:               {Failure, "Failure: No such attribute"},
			StatusNInvalidAttributeValue:         {Failure, "Failure: Invalid attribute value"},
			StatusNProcessingFailure:             {Failure, "Failure: Processing failure"},
			StatusNDuplicateSOPInstance:          {Failure, "Failure: Duplicate SOP instance"},
			StatusNNoSuchObjectInstance:          {Failure, "Failure: No such object instance"},
			StatusNNoSuchEventType:               {Failure, "Failure: No such event type"},
			StatusNNoSuchArgument:                {Failure, "Failure: No such argument"},
			StatusNInvalidArgumentValue:          {Failure, "Failure: Invalid argument value"},
			StatusNInvalidObjectInstance:         {Failure, "Failure: Invalid object instance"},
			StatusNNoSuchSOPClass:                {Failure, "Failure: No such SOP class"},
			StatusNClassInstanceConflict:         {Failure, "Failure: Class-instance conflict"},
			StatusNMissingAttribute:              {Failure, "Failure: Missing attribute"},
			StatusNMissingAttributeValue:         {Failure, "Failure: Missing attribute value"},
			StatusNNoSuchAction:                  {Failure, "Failure: No such action"},
			StatusNNotAuthorized:                 {Failure, "Failure: Not authorized"},
			StatusCancel:                         {Cancel, "Cancel"},
		},
		highNibble: map[uint16]statusEntry{
			0xC000: {Failure, "Failure: Service specific"},
		},
	},
}

func lookupStatus(service Service, status uint16) (statusEntry, bool) {
	switch status {
	case StatusSuccess:
		return statusEntry{Success, "Success"}, true
	case StatusPending:
		return statusEntry{Pending, "Pending"}, true
	}
	table := statusTables[service]
	if e, ok := table.exact[status]; ok {
		return e, true
	}
	if status == StatusPendingWarning {
		return statusEntry{Pending, "Pending: Warning"}, true
	}
	if e, ok := generalFailures[status]; ok {
		return e, true
	}
	if e, ok := table.highByte[status&0xFF00]; ok {
		return e, true
	}
	if e, ok := table.highNibble[status&0xF000]; ok {
		return e, true
	}
	return statusEntry{}, false
}

// Classify maps a status code to its category for service. Codes the
// service does not define are failures.
func Classify(service Service, status uint16) Category {
	e, ok := lookupStatus(service, status)
	if !ok {
		return Failure
	}
	return e.category
}

// StatusString describes a status code in the context of service.
func StatusString(service Service, status uint16) string {
	e, ok := lookupStatus(service, status)
	if !ok {
		return fmt.Sprintf("Unknown Status: 0x%x", status)
	}
	return e.text
}

// ServiceFor returns the status table that applies to msg.
func ServiceFor(msg Message) Service {
	switch msg.(type) {
	case *EchoRQ, *EchoRSP:
		return ServiceEcho
	case *StoreRQ, *StoreRSP:
		return ServiceStore
	case *FindRQ, *FindRSP:
		return ServiceFind
	case *MoveRQ, *MoveRSP:
		return ServiceMove
	case *GetRQ, *GetRSP:
		return ServiceGet
	}
	return ServiceNormalized
}
