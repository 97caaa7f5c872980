package types

import "fmt"

// CommandField is the value of (0000,0100).
type CommandField uint16

// DIMSE Command types
const (
	CStoreRQ        CommandField = 0x0001
	CStoreRSP       CommandField = 0x8001
	CGetRQ          CommandField = 0x0010
	CGetRSP         CommandField = 0x8010
	CFindRQ         CommandField = 0x0020
	CFindRSP        CommandField = 0x8020
	CMoveRQ         CommandField = 0x0021
	CMoveRSP        CommandField = 0x8021
	CEchoRQ         CommandField = 0x0030
	CEchoRSP        CommandField = 0x8030
	NEventReportRQ  CommandField = 0x0100
	NEventReportRSP CommandField = 0x8100
	NGetRQ          CommandField = 0x0110
	NGetRSP         CommandField = 0x8110
	NSetRQ          CommandField = 0x0120
	NSetRSP         CommandField = 0x8120
	NActionRQ       CommandField = 0x0130
	NActionRSP      CommandField = 0x8130
	NCreateRQ       CommandField = 0x0140
	NCreateRSP      CommandField = 0x8140
	NDeleteRQ       CommandField = 0x0150
	NDeleteRSP      CommandField = 0x8150
	CCancelRQ       CommandField = 0x0FFF
)

var commandNames = map[CommandField]string{
	CStoreRQ:        "C-STORE-RQ",
	CStoreRSP:       "C-STORE-RSP",
	CGetRQ:          "C-GET-RQ",
	CGetRSP:         "C-GET-RSP",
	CFindRQ:         "C-FIND-RQ",
	CFindRSP:        "C-FIND-RSP",
	CMoveRQ:         "C-MOVE-RQ",
	CMoveRSP:        "C-MOVE-RSP",
	CEchoRQ:         "C-ECHO-RQ",
	CEchoRSP:        "C-ECHO-RSP",
	NEventReportRQ:  "N-EVENT-REPORT-RQ",
	NEventReportRSP: "N-EVENT-REPORT-RSP",
	NGetRQ:          "N-GET-RQ",
	NGetRSP:         "N-GET-RSP",
	NSetRQ:          "N-SET-RQ",
	NSetRSP:         "N-SET-RSP",
	NActionRQ:       "N-ACTION-RQ",
	NActionRSP:      "N-ACTION-RSP",
	NCreateRQ:       "N-CREATE-RQ",
	NCreateRSP:      "N-CREATE-RSP",
	NDeleteRQ:       "N-DELETE-RQ",
	NDeleteRSP:      "N-DELETE-RSP",
	CCancelRQ:       "C-CANCEL-RQ",
}

func (c CommandField) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(c))
}

// IsResponse reports whether the response bit is set.
func (c CommandField) IsResponse() bool {
	return c&0x8000 != 0
}

// IsKnown reports whether c is one of the defined command fields.
func (c CommandField) IsKnown() bool {
	_, ok := commandNames[c]
	return ok
}

// ResponseCommandFor maps a DIMSE request command to its corresponding response command.
func ResponseCommandFor(request CommandField) CommandField {
	return request | 0x8000
}

// Command Data Set Type (0000,0800) values. Any value other than
// DataSetTypeNull means a data set follows the command.
const (
	DataSetTypePresent uint16 = 0x0001
	DataSetTypeNull    uint16 = 0x0101
)

// Priority (0000,0700) values.
const (
	PriorityMedium uint16 = 0x0000
	PriorityHigh   uint16 = 0x0001
	PriorityLow    uint16 = 0x0002
)
