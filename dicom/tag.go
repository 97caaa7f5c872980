package dicom

import (
	"fmt"
	"strings"
)

// VR (Value Representation) constants
const (
	VR_AE = "AE" // Application Entity
	VR_AS = "AS" // Age String
	VR_AT = "AT" // Attribute Tag
	VR_CS = "CS" // Code String
	VR_DA = "DA" // Date
	VR_DS = "DS" // Decimal String
	VR_DT = "DT" // Date Time
	VR_FL = "FL" // Floating Point Single
	VR_FD = "FD" // Floating Point Double
	VR_IS = "IS" // Integer String
	VR_LO = "LO" // Long String
	VR_LT = "LT" // Long Text
	VR_OB = "OB" // Other Byte
	VR_OD = "OD" // Other Double
	VR_OF = "OF" // Other Float
	VR_OL = "OL" // Other Long
	VR_OV = "OV" // Other Very Long
	VR_OW = "OW" // Other Word
	VR_PN = "PN" // Person Name
	VR_SH = "SH" // Short String
	VR_SL = "SL" // Signed Long
	VR_SQ = "SQ" // Sequence of Items
	VR_SS = "SS" // Signed Short
	VR_ST = "ST" // Short Text
	VR_SV = "SV" // Signed Very Long
	VR_TM = "TM" // Time
	VR_UC = "UC" // Unlimited Characters
	VR_UI = "UI" // Unique Identifier
	VR_UL = "UL" // Unsigned Long
	VR_UN = "UN" // Unknown
	VR_UR = "UR" // Universal Resource
	VR_US = "US" // Unsigned Short
	VR_UT = "UT" // Unlimited Text
	VR_UV = "UV" // Unsigned Very Long
)

type vrKind int

const (
	textVR vrKind = iota
	uidVR
	numberVR
	bulkVR
	sequenceVR
	tagVR
)

func kindOf(vr string) vrKind {
	switch vr {
	case VR_UI:
		return uidVR
	case VR_US, VR_UL, VR_SS, VR_SL, VR_FL, VR_FD:
		return numberVR
	case VR_OB, VR_OD, VR_OF, VR_OL, VR_OV, VR_OW, VR_UN, VR_SV, VR_UV:
		return bulkVR
	case VR_SQ:
		return sequenceVR
	case VR_AT:
		return tagVR
	}
	return textVR
}

// hasLongLength reports whether an explicit VR header uses the 4 byte length form.
func hasLongLength(vr string) bool {
	switch vr {
	case VR_OB, VR_OD, VR_OF, VR_OL, VR_OV, VR_OW, VR_SQ, VR_SV, VR_UC, VR_UN, VR_UR, VR_UT, VR_UV:
		return true
	}
	return false
}

// wordSize is the byte swap unit for binary VRs when the byte order changes.
func wordSize(vr string) int {
	switch vr {
	case VR_US, VR_SS, VR_OW, VR_AT:
		return 2
	case VR_UL, VR_SL, VR_FL, VR_OF, VR_OL:
		return 4
	case VR_FD, VR_OD, VR_OV, VR_SV, VR_UV:
		return 8
	}
	return 1
}

// Tag represents a DICOM tag (group, element)
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag as a string in (GGGG,EEEE) format
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// Less orders tags by group, then element.
func (t Tag) Less(o Tag) bool {
	if t.Group != o.Group {
		return t.Group < o.Group
	}
	return t.Element < o.Element
}

// IsGroupLength reports whether t is a (gggg,0000) group length tag.
func (t Tag) IsGroupLength() bool {
	return t.Element == 0x0000
}

// IsPrivate reports whether t belongs to an odd (private) group.
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// Item and delimiter tags used inside sequences and encapsulated pixel data.
var (
	ItemTag                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItemTag     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItemTag = Tag{0xFFFE, 0xE0DD}
)

// Command group (0000).
var (
	CommandGroupLength             = Tag{0x0000, 0x0000}
	AffectedSOPClassUID            = Tag{0x0000, 0x0002}
	RequestedSOPClassUID           = Tag{0x0000, 0x0003}
	CommandField                   = Tag{0x0000, 0x0100}
	MessageID                      = Tag{0x0000, 0x0110}
	MessageIDBeingRespondedTo      = Tag{0x0000, 0x0120}
	MoveDestination                = Tag{0x0000, 0x0600}
	Priority                       = Tag{0x0000, 0x0700}
	CommandDataSetType             = Tag{0x0000, 0x0800}
	Status                         = Tag{0x0000, 0x0900}
	OffendingElement               = Tag{0x0000, 0x0901}
	ErrorComment                   = Tag{0x0000, 0x0902}
	ErrorID                        = Tag{0x0000, 0x0903}
	AffectedSOPInstanceUID         = Tag{0x0000, 0x1000}
	RequestedSOPInstanceUID        = Tag{0x0000, 0x1001}
	EventTypeID                    = Tag{0x0000, 0x1002}
	AttributeIdentifierList        = Tag{0x0000, 0x1005}
	ActionTypeID                   = Tag{0x0000, 0x1008}
	NumberOfRemainingSuboperations = Tag{0x0000, 0x1020}
	NumberOfCompletedSuboperations = Tag{0x0000, 0x1021}
	NumberOfFailedSuboperations    = Tag{0x0000, 0x1022}
	NumberOfWarningSuboperations   = Tag{0x0000, 0x1023}
	MoveOriginatorAETitle          = Tag{0x0000, 0x1030}
	MoveOriginatorMessageID        = Tag{0x0000, 0x1031}
)

// File meta information (0002).
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
	SourceApplicationEntityTitle   = Tag{0x0002, 0x0016}
)

// Data set attributes the toolkit reads or writes itself.
var (
	SpecificCharacterSet          = Tag{0x0008, 0x0005}
	SOPClassUID                   = Tag{0x0008, 0x0016}
	SOPInstanceUID                = Tag{0x0008, 0x0018}
	StudyDate                     = Tag{0x0008, 0x0020}
	StudyTime                     = Tag{0x0008, 0x0030}
	AccessionNumber               = Tag{0x0008, 0x0050}
	QueryRetrieveLevel            = Tag{0x0008, 0x0052}
	RetrieveAETitle               = Tag{0x0008, 0x0054}
	FailedSOPInstanceUIDList      = Tag{0x0008, 0x0058}
	Modality                      = Tag{0x0008, 0x0060}
	ReferringPhysicianName        = Tag{0x0008, 0x0090}
	StudyDescription              = Tag{0x0008, 0x1030}
	SeriesDescription             = Tag{0x0008, 0x103E}
	ReferencedSOPClassUID         = Tag{0x0008, 0x1150}
	ReferencedSOPInstanceUID      = Tag{0x0008, 0x1155}
	ReferencedSOPSequence         = Tag{0x0008, 0x1199}
	FailedSOPSequence             = Tag{0x0008, 0x1198}
	FailureReason                 = Tag{0x0008, 0x1197}
	PatientName                   = Tag{0x0010, 0x0010}
	PatientID                     = Tag{0x0010, 0x0020}
	PatientBirthDate              = Tag{0x0010, 0x0030}
	PatientSex                    = Tag{0x0010, 0x0040}
	StudyInstanceUID              = Tag{0x0020, 0x000D}
	SeriesInstanceUID             = Tag{0x0020, 0x000E}
	StudyID                       = Tag{0x0020, 0x0010}
	SeriesNumber                  = Tag{0x0020, 0x0011}
	InstanceNumber                = Tag{0x0020, 0x0013}
	NumberOfStudyRelatedInstances = Tag{0x0020, 0x1208}
	SamplesPerPixel               = Tag{0x0028, 0x0002}
	Rows                          = Tag{0x0028, 0x0010}
	Columns                       = Tag{0x0028, 0x0011}
	BitsAllocated                 = Tag{0x0028, 0x0100}
	TransactionUID                = Tag{0x0008, 0x1195}
	PixelData                     = Tag{0x7FE0, 0x0010}
)

type dictEntry struct {
	vr      string
	keyword string
}

var dictionary = map[Tag]dictEntry{
	CommandGroupLength:             {VR_UL, "CommandGroupLength"},
	AffectedSOPClassUID:            {VR_UI, "AffectedSOPClassUID"},
	RequestedSOPClassUID:           {VR_UI, "RequestedSOPClassUID"},
	CommandField:                   {VR_US, "CommandField"},
	MessageID:                      {VR_US, "MessageID"},
	MessageIDBeingRespondedTo:      {VR_US, "MessageIDBeingRespondedTo"},
	MoveDestination:                {VR_AE, "MoveDestination"},
	Priority:                       {VR_US, "Priority"},
	CommandDataSetType:             {VR_US, "CommandDataSetType"},
	Status:                         {VR_US, "Status"},
	OffendingElement:               {VR_AT, "OffendingElement"},
	ErrorComment:                   {VR_LO, "ErrorComment"},
	ErrorID:                        {VR_US, "ErrorID"},
	AffectedSOPInstanceUID:         {VR_UI, "AffectedSOPInstanceUID"},
	RequestedSOPInstanceUID:        {VR_UI, "RequestedSOPInstanceUID"},
	EventTypeID:                    {VR_US, "EventTypeID"},
	AttributeIdentifierList:        {VR_AT, "AttributeIdentifierList"},
	ActionTypeID:                   {VR_US, "ActionTypeID"},
	NumberOfRemainingSuboperations: {VR_US, "NumberOfRemainingSuboperations"},
	NumberOfCompletedSuboperations: {VR_US, "NumberOfCompletedSuboperations"},
	NumberOfFailedSuboperations:    {VR_US, "NumberOfFailedSuboperations"},
	NumberOfWarningSuboperations:   {VR_US, "NumberOfWarningSuboperations"},
	MoveOriginatorAETitle:          {VR_AE, "MoveOriginatorApplicationEntityTitle"},
	MoveOriginatorMessageID:        {VR_US, "MoveOriginatorMessageID"},

	FileMetaInformationGroupLength: {VR_UL, "FileMetaInformationGroupLength"},
	FileMetaInformationVersion:     {VR_OB, "FileMetaInformationVersion"},
	MediaStorageSOPClassUID:        {VR_UI, "MediaStorageSOPClassUID"},
	MediaStorageSOPInstanceUID:     {VR_UI, "MediaStorageSOPInstanceUID"},
	TransferSyntaxUID:              {VR_UI, "TransferSyntaxUID"},
	ImplementationClassUID:         {VR_UI, "ImplementationClassUID"},
	ImplementationVersionName:      {VR_SH, "ImplementationVersionName"},
	SourceApplicationEntityTitle:   {VR_AE, "SourceApplicationEntityTitle"},

	SpecificCharacterSet:          {VR_CS, "SpecificCharacterSet"},
	{0x0008, 0x0008}:              {VR_CS, "ImageType"},
	SOPClassUID:                   {VR_UI, "SOPClassUID"},
	SOPInstanceUID:                {VR_UI, "SOPInstanceUID"},
	StudyDate:                     {VR_DA, "StudyDate"},
	{0x0008, 0x0021}:              {VR_DA, "SeriesDate"},
	StudyTime:                     {VR_TM, "StudyTime"},
	AccessionNumber:               {VR_SH, "AccessionNumber"},
	QueryRetrieveLevel:            {VR_CS, "QueryRetrieveLevel"},
	RetrieveAETitle:               {VR_AE, "RetrieveAETitle"},
	{0x0008, 0x0056}:              {VR_CS, "InstanceAvailability"},
	FailedSOPInstanceUIDList:      {VR_UI, "FailedSOPInstanceUIDList"},
	Modality:                      {VR_CS, "Modality"},
	{0x0008, 0x0061}:              {VR_CS, "ModalitiesInStudy"},
	{0x0008, 0x0070}:              {VR_LO, "Manufacturer"},
	{0x0008, 0x0080}:              {VR_LO, "InstitutionName"},
	ReferringPhysicianName:        {VR_PN, "ReferringPhysicianName"},
	StudyDescription:              {VR_LO, "StudyDescription"},
	SeriesDescription:             {VR_LO, "SeriesDescription"},
	{0x0008, 0x1040}:              {VR_LO, "InstitutionalDepartmentName"},
	{0x0008, 0x1050}:              {VR_PN, "PerformingPhysicianName"},
	{0x0008, 0x1070}:              {VR_PN, "OperatorsName"},
	ReferencedSOPClassUID:         {VR_UI, "ReferencedSOPClassUID"},
	ReferencedSOPInstanceUID:      {VR_UI, "ReferencedSOPInstanceUID"},
	TransactionUID:                {VR_UI, "TransactionUID"},
	FailureReason:                 {VR_US, "FailureReason"},
	FailedSOPSequence:             {VR_SQ, "FailedSOPSequence"},
	ReferencedSOPSequence:         {VR_SQ, "ReferencedSOPSequence"},
	PatientName:                   {VR_PN, "PatientName"},
	PatientID:                     {VR_LO, "PatientID"},
	PatientBirthDate:              {VR_DA, "PatientBirthDate"},
	PatientSex:                    {VR_CS, "PatientSex"},
	{0x0010, 0x1010}:              {VR_AS, "PatientAge"},
	{0x0018, 0x0015}:              {VR_CS, "BodyPartExamined"},
	{0x0018, 0x0050}:              {VR_DS, "SliceThickness"},
	StudyInstanceUID:              {VR_UI, "StudyInstanceUID"},
	SeriesInstanceUID:             {VR_UI, "SeriesInstanceUID"},
	StudyID:                       {VR_SH, "StudyID"},
	SeriesNumber:                  {VR_IS, "SeriesNumber"},
	InstanceNumber:                {VR_IS, "InstanceNumber"},
	{0x0020, 0x0020}:              {VR_CS, "PatientOrientation"},
	{0x0020, 0x0032}:              {VR_DS, "ImagePositionPatient"},
	{0x0020, 0x0037}:              {VR_DS, "ImageOrientationPatient"},
	{0x0020, 0x1206}:              {VR_IS, "NumberOfStudyRelatedSeries"},
	NumberOfStudyRelatedInstances: {VR_IS, "NumberOfStudyRelatedInstances"},
	{0x0020, 0x1209}:              {VR_IS, "NumberOfSeriesRelatedInstances"},
	SamplesPerPixel:               {VR_US, "SamplesPerPixel"},
	{0x0028, 0x0004}:              {VR_CS, "PhotometricInterpretation"},
	{0x0028, 0x0008}:              {VR_IS, "NumberOfFrames"},
	Rows:                          {VR_US, "Rows"},
	Columns:                       {VR_US, "Columns"},
	{0x0028, 0x0030}:              {VR_DS, "PixelSpacing"},
	BitsAllocated:                 {VR_US, "BitsAllocated"},
	{0x0028, 0x0101}:              {VR_US, "BitsStored"},
	{0x0028, 0x0102}:              {VR_US, "HighBit"},
	{0x0028, 0x0103}:              {VR_US, "PixelRepresentation"},
	{0x0028, 0x1050}:              {VR_DS, "WindowCenter"},
	{0x0028, 0x1051}:              {VR_DS, "WindowWidth"},
	{0x0028, 0x1052}:              {VR_DS, "RescaleIntercept"},
	{0x0028, 0x1053}:              {VR_DS, "RescaleSlope"},
	{0x0040, 0x0100}:              {VR_SQ, "ScheduledProcedureStepSequence"},
	{0x0040, 0x0001}:              {VR_AE, "ScheduledStationAETitle"},
	{0x0040, 0x0002}:              {VR_DA, "ScheduledProcedureStepStartDate"},
	{0x0040, 0x0009}:              {VR_SH, "ScheduledProcedureStepID"},
	PixelData:                     {VR_OW, "PixelData"},
}

// LookupVR returns the dictionary VR of a tag. Group lengths are UL and
// anything unknown is UN.
func LookupVR(tag Tag) string {
	if e, ok := dictionary[tag]; ok {
		return e.vr
	}
	if tag.IsGroupLength() {
		return VR_UL
	}
	return VR_UN
}

// Keyword returns the dictionary keyword of a tag, or its (gggg,eeee) form.
func Keyword(tag Tag) string {
	if e, ok := dictionary[tag]; ok {
		return e.keyword
	}
	if tag.IsGroupLength() {
		return fmt.Sprintf("GroupLength%04X", tag.Group)
	}
	return tag.String()
}

// ParseTag reads a dictionary keyword or a "gggg,eeee" pair, with or
// without parentheses.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	for tag, e := range dictionary {
		if e.keyword == s {
			return tag, nil
		}
	}
	var group, element uint16
	trimmed := strings.Trim(s, "()")
	if _, err := fmt.Sscanf(trimmed, "%4x,%4x", &group, &element); err != nil {
		return Tag{}, fmt.Errorf("unknown tag %q", s)
	}
	return Tag{Group: group, Element: element}, nil
}
