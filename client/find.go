package client

import (
	"fmt"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

// ResponseFunc sees each pending response as it arrives. Returning false
// sends a C-CANCEL-RQ for the operation; responses keep arriving until the
// final one.
type ResponseFunc[T any] func(rsp T) bool

// CFindRequest encapsulates the information required to perform a C-FIND query.
type CFindRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Dataset     *dicom.Dataset
	OnResponse  ResponseFunc[*CFindResponse]
}

// CFindResponse represents a single C-FIND response from the SCP.
type CFindResponse struct {
	Status    uint16
	MessageID uint16
	Dataset   *dicom.Dataset
}

// SendCFind performs a DICOM C-FIND query and returns all responses in order.
func (a *Association) SendCFind(req *CFindRequest) ([]*CFindResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-find request cannot be nil")
	}

	if req.Dataset == nil {
		return nil, fmt.Errorf("c-find request requires a dataset")
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.StudyRootQueryRetrieveInformationModelFind
	}

	presContextID, err := a.GetPresentationContextID(sopClass)
	if err != nil {
		return nil, err
	}

	command := &dimse.FindRQ{
		MessageID:           a.messageID(req.MessageID),
		AffectedSOPClassUID: sopClass,
		Priority:            req.Priority,
	}

	var (
		responses []*CFindResponse
		cancelErr error
		cancelled bool
	)
	onPending := func(_ int, rsp *dimse.FindRSP, identifier *dicom.Dataset) {
		r := &CFindResponse{Status: rsp.Status, MessageID: rsp.MessageIDBeingRespondedTo, Dataset: identifier}
		responses = append(responses, r)
		if req.OnResponse != nil && !cancelled && !req.OnResponse(r) {
			cancelled = true
			cancelErr = a.engine.SendCancelRequest(a.conn, presContextID, command.MessageID)
		}
	}

	final, _, err := a.engine.FindUser(a.conn, presContextID, command, req.Dataset, onPending, dimse.Blocking, a.timeout)
	if err != nil {
		return responses, fmt.Errorf("C-FIND failed: %w", err)
	}
	if cancelErr != nil {
		return responses, fmt.Errorf("failed to send C-CANCEL: %w", cancelErr)
	}

	responses = append(responses, &CFindResponse{
		Status:    final.Status,
		MessageID: final.MessageIDBeingRespondedTo,
	})
	a.logger.Debug("C-FIND completed",
		"matches", len(responses)-1,
		"status", dimse.StatusString(dimse.ServiceFind, final.Status))

	return responses, statusError(dimse.ServiceFind, final.Status)
}
