package services

import (
	"context"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Storage commitment action and event types.
const (
	CommitmentRequestAction    uint16 = 1
	CommitmentSuccessEvent     uint16 = 1
	CommitmentFailuresEvent    uint16 = 2
	commitmentNoSuchInstance   uint16 = 0x0112
	commitmentClassMismatching uint16 = 0x0119
)

// StorageCommitmentService answers Storage Commitment Push Model N-ACTION
// requests. After the N-ACTION-RSP it reports the outcome with an
// N-EVENT-REPORT on the same association and waits for its response.
type StorageCommitmentService struct {
	Store interfaces.InstanceStore
}

// NewStorageCommitmentService creates a storage commitment SCP checking
// requests against store.
func NewStorageCommitmentService(store interfaces.InstanceStore) *StorageCommitmentService {
	return &StorageCommitmentService{Store: store}
}

func (s *StorageCommitmentService) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	rq, ok := req.Message.(*dimse.NActionRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "storage commitment service got %s", req.Message.Command())
	}
	logger := requestLogger(req)
	e, conn, pcid := req.Engine, req.Conn, req.ContextID

	var info *dicom.Dataset
	if dimse.IsDataSetPresent(rq) {
		var err error
		if _, info, err = e.ReceiveDataSet(conn, dimse.Blocking, req.Timeout, nil); err != nil {
			return err
		}
	}

	status := dimse.StatusSuccess
	switch {
	case rq.RequestedSOPClassUID != types.StorageCommitmentPushModelSOPClass:
		status = dimse.StatusNNoSuchSOPClass
	case rq.ActionTypeID != CommitmentRequestAction:
		status = dimse.StatusNNoSuchAction
	case info == nil || info.GetString(dicom.TransactionUID) == "":
		status = dimse.StatusNMissingAttribute
	}
	rsp, err := dimse.NewNResponse(rq, status)
	if err != nil {
		return err
	}
	if err := e.SendNResponse(conn, pcid, rsp, nil, nil); err != nil {
		return err
	}
	if status != dimse.StatusSuccess {
		logger.WarnContext(ctx, "Storage commitment request refused",
			"status", dimse.StatusString(dimse.ServiceNormalized, status))
		return nil
	}

	eventType, report := s.commit(info)
	event := &dimse.NEventReportRQ{
		MessageID:              conn.NextMessageID(),
		AffectedSOPClassUID:    types.StorageCommitmentPushModelSOPClass,
		AffectedSOPInstanceUID: types.StorageCommitmentPushModelSOPInstance,
		EventTypeID:            eventType,
	}
	res, err := e.NEventReportUser(conn, pcid, event, report, dimse.Blocking, req.Timeout)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Storage commitment reported",
		"transaction_uid", info.GetString(dicom.TransactionUID),
		"event_type", eventType,
		"status", dimse.StatusString(dimse.ServiceNormalized, res.Response.Status))
	return nil
}

// commit checks every referenced instance and builds the event report.
func (s *StorageCommitmentService) commit(info *dicom.Dataset) (uint16, *dicom.Dataset) {
	var committed, failed []*dicom.Dataset
	for _, item := range info.GetSequence(dicom.ReferencedSOPSequence) {
		classUID := item.GetString(dicom.ReferencedSOPClassUID)
		instanceUID := item.GetString(dicom.ReferencedSOPInstanceUID)
		ref := dicom.NewDataset()
		ref.AddElement(dicom.ReferencedSOPClassUID, dicom.VR_UI, classUID)
		ref.AddElement(dicom.ReferencedSOPInstanceUID, dicom.VR_UI, instanceUID)

		inst, ok := s.Store.Get(instanceUID)
		switch {
		case !ok:
			ref.AddElement(dicom.FailureReason, dicom.VR_US, commitmentNoSuchInstance)
			failed = append(failed, ref)
		case inst.SOPClassUID != classUID:
			ref.AddElement(dicom.FailureReason, dicom.VR_US, commitmentClassMismatching)
			failed = append(failed, ref)
		default:
			committed = append(committed, ref)
		}
	}

	report := dicom.NewDataset()
	report.AddElement(dicom.TransactionUID, dicom.VR_UI, info.GetString(dicom.TransactionUID))
	if len(committed) > 0 {
		report.AddElement(dicom.ReferencedSOPSequence, dicom.VR_SQ, committed)
	}
	if len(failed) > 0 {
		report.AddElement(dicom.FailedSOPSequence, dicom.VR_SQ, failed)
		return CommitmentFailuresEvent, report
	}
	return CommitmentSuccessEvent, report
}
