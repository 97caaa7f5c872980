package types

import "strings"

// ApplicationContextUID is the DICOM application context name.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// Verification and normalized service classes.
const (
	VerificationSOPClass                   = "1.2.840.10008.1.1"
	StorageCommitmentPushModelSOPClass     = "1.2.840.10008.1.20.1"
	ModalityPerformedProcedureStepSOPClass = "1.2.840.10008.3.1.2.3.3"
	BasicFilmSessionSOPClass               = "1.2.840.10008.5.1.1.1"
	PrinterSOPClass                        = "1.2.840.10008.5.1.1.16"

	// StorageCommitmentPushModelSOPInstance is the well-known instance
	// addressed by N-ACTION and N-EVENT-REPORT for storage commitment.
	StorageCommitmentPushModelSOPInstance = "1.2.840.10008.1.20.1.1"
)

// Storage SOP classes proposed by default.
const (
	ComputedRadiographyImageStorage        = "1.2.840.10008.5.1.4.1.1.1"
	DigitalXRayImageStorageForPresentation = "1.2.840.10008.5.1.4.1.1.1.1"
	CTImageStorage                         = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage                 = "1.2.840.10008.5.1.4.1.1.2.1"
	UltrasoundMultiFrameImageStorage       = "1.2.840.10008.5.1.4.1.1.3.1"
	MRImageStorage                         = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage                 = "1.2.840.10008.5.1.4.1.1.4.1"
	UltrasoundImageStorage                 = "1.2.840.10008.5.1.4.1.1.6.1"
	SecondaryCaptureImageStorage           = "1.2.840.10008.5.1.4.1.1.7"
	XRayAngiographicImageStorage           = "1.2.840.10008.5.1.4.1.1.12.1"
	NuclearMedicineImageStorage            = "1.2.840.10008.5.1.4.1.1.20"
	EncapsulatedPDFStorage                 = "1.2.840.10008.5.1.4.1.1.104.1"
	PETImageStorage                        = "1.2.840.10008.5.1.4.1.1.128"
	RTImageStorage                         = "1.2.840.10008.5.1.4.1.1.481.1"
	RTDoseStorage                          = "1.2.840.10008.5.1.4.1.1.481.2"
	RTStructureSetStorage                  = "1.2.840.10008.5.1.4.1.1.481.3"
	RTPlanStorage                          = "1.2.840.10008.5.1.4.1.1.481.5"
	BasicTextSRStorage                     = "1.2.840.10008.5.1.4.1.1.88.11"
	EnhancedSRStorage                      = "1.2.840.10008.5.1.4.1.1.88.22"
)

// Query/Retrieve information models.
const (
	PatientRootQueryRetrieveInformationModelFind      = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQueryRetrieveInformationModelMove      = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootQueryRetrieveInformationModelGet       = "1.2.840.10008.5.1.4.1.2.1.3"
	StudyRootQueryRetrieveInformationModelFind        = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveInformationModelMove        = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQueryRetrieveInformationModelGet         = "1.2.840.10008.5.1.4.1.2.2.3"
	PatientStudyOnlyQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.3.1"
	PatientStudyOnlyQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.3.2"
	PatientStudyOnlyQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.3.3"
	ModalityWorklistInformationModelFind              = "1.2.840.10008.5.1.4.31"
)

// storageRoot prefixes every composite storage SOP class.
const storageRoot = "1.2.840.10008.5.1.4.1.1."

// ServiceKind groups SOP classes by the DIMSE service that carries them.
type ServiceKind int

const (
	ServiceKindUnknown ServiceKind = iota
	ServiceKindVerification
	ServiceKindStorage
	ServiceKindFind
	ServiceKindMove
	ServiceKindGet
	ServiceKindNormalized
)

var sopClassKinds = map[string]ServiceKind{
	VerificationSOPClass:                              ServiceKindVerification,
	PatientRootQueryRetrieveInformationModelFind:      ServiceKindFind,
	StudyRootQueryRetrieveInformationModelFind:        ServiceKindFind,
	PatientStudyOnlyQueryRetrieveInformationModelFind: ServiceKindFind,
	ModalityWorklistInformationModelFind:              ServiceKindFind,
	PatientRootQueryRetrieveInformationModelMove:      ServiceKindMove,
	StudyRootQueryRetrieveInformationModelMove:        ServiceKindMove,
	PatientStudyOnlyQueryRetrieveInformationModelMove: ServiceKindMove,
	PatientRootQueryRetrieveInformationModelGet:       ServiceKindGet,
	StudyRootQueryRetrieveInformationModelGet:         ServiceKindGet,
	PatientStudyOnlyQueryRetrieveInformationModelGet:  ServiceKindGet,
	StorageCommitmentPushModelSOPClass:                ServiceKindNormalized,
	ModalityPerformedProcedureStepSOPClass:            ServiceKindNormalized,
	BasicFilmSessionSOPClass:                          ServiceKindNormalized,
	PrinterSOPClass:                                   ServiceKindNormalized,
}

// SOPClassKind classifies a SOP class UID. Anything under the composite
// storage root counts as storage.
func SOPClassKind(uid string) ServiceKind {
	if kind, ok := sopClassKinds[uid]; ok {
		return kind
	}
	if strings.HasPrefix(uid, storageRoot) {
		return ServiceKindStorage
	}
	return ServiceKindUnknown
}

// IsStorageSOPClass returns true if the UID is a composite storage SOP class.
func IsStorageSOPClass(uid string) bool {
	return SOPClassKind(uid) == ServiceKindStorage
}

// IsQueryRetrieveSOPClass returns true for FIND, MOVE and GET information models.
func IsQueryRetrieveSOPClass(uid string) bool {
	switch SOPClassKind(uid) {
	case ServiceKindFind, ServiceKindMove, ServiceKindGet:
		return true
	}
	return false
}

// CommonStorageSOPClasses lists the storage classes proposed and accepted by default.
func CommonStorageSOPClasses() []string {
	return []string{
		CTImageStorage,
		MRImageStorage,
		ComputedRadiographyImageStorage,
		DigitalXRayImageStorageForPresentation,
		UltrasoundImageStorage,
		UltrasoundMultiFrameImageStorage,
		SecondaryCaptureImageStorage,
		XRayAngiographicImageStorage,
		NuclearMedicineImageStorage,
		PETImageStorage,
		EnhancedCTImageStorage,
		EnhancedMRImageStorage,
		RTImageStorage,
		RTDoseStorage,
		RTStructureSetStorage,
		RTPlanStorage,
		BasicTextSRStorage,
		EnhancedSRStorage,
		EncapsulatedPDFStorage,
	}
}
