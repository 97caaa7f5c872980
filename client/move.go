package client

import (
	"fmt"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

// CMoveRequest encapsulates the information required to perform a C-MOVE operation.
type CMoveRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Destination string         // AE title the SCP sends the instances to
	Dataset     *dicom.Dataset // Query identifying which instances to move
	// SubAssociations services the stores when Destination is this
	// application. Nil when another AE receives them.
	SubAssociations *SubAssociationListener
	OnResponse      ResponseFunc[*CMoveResponse]
}

// CMoveResponse represents a single C-MOVE response from the SCP.
type CMoveResponse = RetrieveResponse

// RetrieveResponse is one C-MOVE or C-GET response. The remaining count is
// only reported while the operation is pending or after a cancel.
type RetrieveResponse struct {
	Status                         uint16
	MessageID                      uint16
	NumberOfRemainingSuboperations *uint16
	NumberOfCompletedSuboperations *uint16
	NumberOfFailedSuboperations    *uint16
	NumberOfWarningSuboperations   *uint16
	// Identifier usually holds the Failed SOP Instance UID List.
	Identifier *dicom.Dataset
}

func retrieveResponse(msgID, status uint16, counts dimse.SubOperations, opts dimse.Opts, identifier *dicom.Dataset) *RetrieveResponse {
	r := &RetrieveResponse{Status: status, MessageID: msgID, Identifier: identifier}
	count := func(has dimse.Opts, v uint16) *uint16 {
		if !opts.Has(has) {
			return nil
		}
		return &v
	}
	r.NumberOfRemainingSuboperations = count(dimse.OptRemaining, counts.Remaining)
	r.NumberOfCompletedSuboperations = count(dimse.OptCompleted, counts.Completed)
	r.NumberOfFailedSuboperations = count(dimse.OptFailed, counts.Failed)
	r.NumberOfWarningSuboperations = count(dimse.OptWarning, counts.Warning)
	return r
}

// SendCMove performs a DICOM C-MOVE operation and returns its responses, the
// final one last.
func (a *Association) SendCMove(req *CMoveRequest) ([]*CMoveResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-move request cannot be nil")
	}
	if req.Dataset == nil {
		return nil, fmt.Errorf("c-move request requires a dataset")
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("c-move request requires a destination")
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.StudyRootQueryRetrieveInformationModelMove
	}
	presContextID, err := a.GetPresentationContextID(sopClass)
	if err != nil {
		return nil, err
	}

	command := &dimse.MoveRQ{
		MessageID:           a.messageID(req.MessageID),
		AffectedSOPClassUID: sopClass,
		Priority:            req.Priority,
		MoveDestination:     req.Destination,
	}
	opts := dimse.RetrieveOptions{Mode: dimse.Blocking, Timeout: a.timeout}
	if req.SubAssociations != nil {
		opts.Listener = req.SubAssociations.Listener()
		opts.SubOps = req.SubAssociations
	}

	var (
		responses []*CMoveResponse
		cancelErr error
		cancelled bool
	)
	onResponse := func(_ int, rsp *dimse.MoveRSP, identifier *dicom.Dataset) {
		r := retrieveResponse(rsp.MessageIDBeingRespondedTo, rsp.Status, rsp.SubOperations, rsp.Opts, identifier)
		responses = append(responses, r)
		if dimse.IsPending(rsp.Status) && req.OnResponse != nil && !cancelled && !req.OnResponse(r) {
			cancelled = true
			cancelErr = a.engine.SendCancelRequest(a.conn, presContextID, command.MessageID)
		}
	}

	final, _, err := a.engine.MoveUser(a.conn, presContextID, command, req.Dataset, onResponse, opts)
	if err != nil {
		return responses, fmt.Errorf("C-MOVE failed: %w", err)
	}
	if cancelErr != nil {
		return responses, fmt.Errorf("failed to send C-CANCEL: %w", cancelErr)
	}
	a.logger.Debug("C-MOVE completed",
		"destination", req.Destination,
		"status", dimse.StatusString(dimse.ServiceMove, final.Status))

	return responses, statusError(dimse.ServiceMove, final.Status)
}
