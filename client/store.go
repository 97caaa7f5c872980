package client

import (
	"fmt"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

// CStoreRequest represents a C-STORE request. Exactly one of Dataset and
// File carries the instance.
type CStoreRequest struct {
	SOPClassUID    string
	SOPInstanceUID string
	Dataset        *dicom.Dataset
	File           string
	MessageID      uint16
	Priority       uint16
	// MoveOriginator identifies the C-MOVE this store belongs to, if any.
	MoveOriginatorAETitle   string
	MoveOriginatorMessageID uint16
	Progress                func(dimse.StoreProgress)
}

// CStoreResponse represents a C-STORE response
type CStoreResponse struct {
	Status         uint16
	MessageID      uint16
	SOPClassUID    string
	SOPInstanceUID string
	// CancelledMessageID is set when a C-CANCEL-RQ arrived while waiting.
	CancelledMessageID uint16
}

// SendCStore sends a C-STORE request and waits for response
func (a *Association) SendCStore(req *CStoreRequest) (*CStoreResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-store request cannot be nil")
	}
	if (req.Dataset == nil) == (req.File == "") {
		return nil, fmt.Errorf("c-store request needs exactly one of dataset and file")
	}

	// Find presentation context for this SOP Class
	presContextID, err := a.GetPresentationContextID(req.SOPClassUID)
	if err != nil {
		return nil, fmt.Errorf("no presentation context for SOP class %s: %w", req.SOPClassUID, err)
	}

	command := &dimse.StoreRQ{
		MessageID:              a.messageID(req.MessageID),
		AffectedSOPClassUID:    req.SOPClassUID,
		AffectedSOPInstanceUID: req.SOPInstanceUID,
		Priority:               req.Priority,
		DataSetType:            types.DataSetTypePresent,
	}
	if req.MoveOriginatorAETitle != "" {
		command.MoveOriginatorAETitle = req.MoveOriginatorAETitle
		command.MoveOriginatorMessageID = req.MoveOriginatorMessageID
		command.Opts = dimse.OptMoveOriginatorAETitle | dimse.OptMoveOriginatorMessageID
	}

	res, err := a.engine.StoreUser(a.conn, presContextID, dimse.StoreRequest{
		Message:  command,
		Dataset:  req.Dataset,
		File:     req.File,
		Progress: req.Progress,
		Mode:     dimse.Blocking,
		Timeout:  a.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send C-STORE: %w", err)
	}

	a.logger.Debug("C-STORE completed",
		"sop_class", req.SOPClassUID,
		"sop_instance", req.SOPInstanceUID,
		"status", dimse.StatusString(dimse.ServiceStore, res.Response.Status))

	resp := &CStoreResponse{
		Status:         res.Response.Status,
		MessageID:      res.Response.MessageIDBeingRespondedTo,
		SOPClassUID:    res.Response.AffectedSOPClassUID,
		SOPInstanceUID: res.Response.AffectedSOPInstanceUID,
	}
	if res.Cancel != nil {
		resp.CancelledMessageID = res.Cancel.Request.MessageIDBeingRespondedTo
	}
	return resp, statusError(dimse.ServiceStore, resp.Status)
}

// SendCStoreFile stores a Part 10 file, taking the SOP class and instance
// from its meta header or, failing that, from the data set.
func (a *Association) SendCStoreFile(path string, progress func(dimse.StoreProgress)) (*CStoreResponse, error) {
	f, err := dicom.ReadFile(path)
	if err != nil {
		return nil, err
	}
	classUID, instanceUID := instanceIdentity(f)
	if classUID == "" || instanceUID == "" {
		return nil, fmt.Errorf("%s: missing SOP class or instance UID", path)
	}
	return a.SendCStore(&CStoreRequest{
		SOPClassUID:    classUID,
		SOPInstanceUID: instanceUID,
		File:           path,
		Progress:       progress,
	})
}

func instanceIdentity(f *dicom.File) (classUID, instanceUID string) {
	if f.Meta != nil {
		classUID = f.Meta.GetString(dicom.MediaStorageSOPClassUID)
		instanceUID = f.Meta.GetString(dicom.MediaStorageSOPInstanceUID)
	}
	if classUID == "" {
		classUID = f.Dataset.GetString(dicom.SOPClassUID)
	}
	if instanceUID == "" {
		instanceUID = f.Dataset.GetString(dicom.SOPInstanceUID)
	}
	return classUID, instanceUID
}
