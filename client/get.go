package client

import (
	"fmt"
	"os"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

// CGetRequest encapsulates the information required to perform a C-GET operation.
type CGetRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Dataset     *dicom.Dataset // Query identifying which instances to retrieve
	// Sink receives the instances the SCP stores back on this association.
	Sink       StoreSink
	OnResponse ResponseFunc[*CGetResponse]
}

// CGetResponse represents a single C-GET response from the SCP.
type CGetResponse = RetrieveResponse

// SendCGet performs a DICOM C-GET operation to retrieve instances.
// The SCP will send C-STORE operations on the same association for each matching instance.
//
// The storage SOP classes of the instances must have been proposed when
// connecting, otherwise the SCP has no context to send them on.
func (a *Association) SendCGet(req *CGetRequest) ([]*CGetResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-get request cannot be nil")
	}

	if req.Dataset == nil {
		return nil, fmt.Errorf("c-get request requires a dataset")
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.StudyRootQueryRetrieveInformationModelGet
	}

	presContextID, err := a.GetPresentationContextID(sopClass)
	if err != nil {
		return nil, err
	}
	if req.Sink.Directory != "" {
		if err := os.MkdirAll(req.Sink.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	command := &dimse.GetRQ{
		MessageID:           a.messageID(req.MessageID),
		AffectedSOPClassUID: sopClass,
		Priority:            req.Priority,
	}
	store := &storeHandler{
		engine:  a.engine,
		sink:    req.Sink,
		localAE: a.conn.LocalAETitle(),
		timeout: a.timeout,
		logger:  a.logger,
	}
	opts := dimse.RetrieveOptions{
		Mode:    dimse.Blocking,
		Timeout: a.timeout,
		Store:   store.serve,
	}

	var (
		responses []*CGetResponse
		cancelErr error
		cancelled bool
	)
	onResponse := func(_ int, rsp *dimse.GetRSP, identifier *dicom.Dataset) {
		r := retrieveResponse(rsp.MessageIDBeingRespondedTo, rsp.Status, rsp.SubOperations, rsp.Opts, identifier)
		responses = append(responses, r)
		if dimse.IsPending(rsp.Status) && req.OnResponse != nil && !cancelled && !req.OnResponse(r) {
			cancelled = true
			cancelErr = a.engine.SendCancelRequest(a.conn, presContextID, command.MessageID)
		}
	}

	final, _, err := a.engine.GetUser(a.conn, presContextID, command, req.Dataset, onResponse, opts)
	if err != nil {
		return responses, fmt.Errorf("failed to receive C-GET response: %w", err)
	}
	if cancelErr != nil {
		return responses, fmt.Errorf("failed to send C-CANCEL: %w", cancelErr)
	}
	a.logger.Debug("C-GET completed", "status", dimse.StatusString(dimse.ServiceGet, final.Status))

	return responses, statusError(dimse.ServiceGet, final.Status)
}
