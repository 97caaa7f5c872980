package client

import (
	"fmt"
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
)

// NResponse is the answer to an N-* request.
type NResponse struct {
	Status         uint16
	MessageID      uint16
	SOPClassUID    string
	SOPInstanceUID string
	// Dataset is the attribute list or reply information, if any.
	Dataset *dicom.Dataset
}

func nResponse[T dimse.Response](res *dimse.NResult[T]) *NResponse {
	r := &NResponse{
		Status:    res.Response.StatusCode(),
		MessageID: res.Response.RespondsTo(),
		Dataset:   res.Dataset,
	}
	switch m := any(res.Response).(type) {
	case *dimse.NEventReportRSP:
		r.SOPClassUID, r.SOPInstanceUID = m.AffectedSOPClassUID, m.AffectedSOPInstanceUID
	case *dimse.NGetRSP:
		r.SOPClassUID, r.SOPInstanceUID = m.AffectedSOPClassUID, m.AffectedSOPInstanceUID
	case *dimse.NSetRSP:
		r.SOPClassUID, r.SOPInstanceUID = m.AffectedSOPClassUID, m.AffectedSOPInstanceUID
	case *dimse.NActionRSP:
		r.SOPClassUID, r.SOPInstanceUID = m.AffectedSOPClassUID, m.AffectedSOPInstanceUID
	case *dimse.NCreateRSP:
		r.SOPClassUID, r.SOPInstanceUID = m.AffectedSOPClassUID, m.AffectedSOPInstanceUID
	case *dimse.NDeleteRSP:
		r.SOPClassUID, r.SOPInstanceUID = m.AffectedSOPClassUID, m.AffectedSOPInstanceUID
	}
	return r
}

func finishN[T dimse.Response](a *Association, op string, res *dimse.NResult[T], err error) (*NResponse, error) {
	if err != nil {
		return nil, err
	}
	r := nResponse(res)
	a.logger.Debug(op+" completed", "status", dimse.StatusString(dimse.ServiceNormalized, r.Status))
	return r, statusError(dimse.ServiceNormalized, r.Status)
}

// SendNEventReport reports eventType on an instance.
func (a *Association) SendNEventReport(sopClassUID, sopInstanceUID string, eventType uint16, info *dicom.Dataset) (*NResponse, error) {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}
	req := &dimse.NEventReportRQ{
		MessageID:              a.conn.NextMessageID(),
		AffectedSOPClassUID:    sopClassUID,
		AffectedSOPInstanceUID: sopInstanceUID,
		EventTypeID:            eventType,
	}
	res, err := a.engine.NEventReportUser(a.conn, pcid, req, info, dimse.Blocking, a.timeout)
	return finishN(a, "N-EVENT-REPORT", res, err)
}

// SendNGet retrieves attributes of an instance; no tags means all of them.
func (a *Association) SendNGet(sopClassUID, sopInstanceUID string, tags ...dicom.Tag) (*NResponse, error) {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}
	req := &dimse.NGetRQ{
		MessageID:               a.conn.NextMessageID(),
		RequestedSOPClassUID:    sopClassUID,
		RequestedSOPInstanceUID: sopInstanceUID,
		AttributeIdentifierList: tags,
	}
	res, err := a.engine.NGetUser(a.conn, pcid, req, dimse.Blocking, a.timeout)
	return finishN(a, "N-GET", res, err)
}

// SendNSet applies modifications to an instance.
func (a *Association) SendNSet(sopClassUID, sopInstanceUID string, modifications *dicom.Dataset) (*NResponse, error) {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}
	req := &dimse.NSetRQ{
		MessageID:               a.conn.NextMessageID(),
		RequestedSOPClassUID:    sopClassUID,
		RequestedSOPInstanceUID: sopInstanceUID,
	}
	res, err := a.engine.NSetUser(a.conn, pcid, req, modifications, dimse.Blocking, a.timeout)
	return finishN(a, "N-SET", res, err)
}

// SendNAction asks the SCP to perform actionType on an instance.
func (a *Association) SendNAction(sopClassUID, sopInstanceUID string, actionType uint16, info *dicom.Dataset) (*NResponse, error) {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}
	req := &dimse.NActionRQ{
		MessageID:               a.conn.NextMessageID(),
		RequestedSOPClassUID:    sopClassUID,
		RequestedSOPInstanceUID: sopInstanceUID,
		ActionTypeID:            actionType,
	}
	res, err := a.engine.NActionUser(a.conn, pcid, req, info, dimse.Blocking, a.timeout)
	return finishN(a, "N-ACTION", res, err)
}

// SendNCreate creates an instance. An empty sopInstanceUID lets the SCP
// assign one; it is returned in the response.
func (a *Association) SendNCreate(sopClassUID, sopInstanceUID string, attrs *dicom.Dataset) (*NResponse, error) {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}
	req := &dimse.NCreateRQ{
		MessageID:              a.conn.NextMessageID(),
		AffectedSOPClassUID:    sopClassUID,
		AffectedSOPInstanceUID: sopInstanceUID,
	}
	if sopInstanceUID != "" {
		req.Opts = dimse.OptAffectedSOPInstanceUID
	}
	res, err := a.engine.NCreateUser(a.conn, pcid, req, attrs, dimse.Blocking, a.timeout)
	return finishN(a, "N-CREATE", res, err)
}

// SendNDelete deletes an instance.
func (a *Association) SendNDelete(sopClassUID, sopInstanceUID string) (*NResponse, error) {
	pcid, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return nil, err
	}
	req := &dimse.NDeleteRQ{
		MessageID:               a.conn.NextMessageID(),
		RequestedSOPClassUID:    sopClassUID,
		RequestedSOPInstanceUID: sopInstanceUID,
	}
	res, err := a.engine.NDeleteUser(a.conn, pcid, req, dimse.Blocking, a.timeout)
	return finishN(a, "N-DELETE", res, err)
}

// NEventReport is an N-EVENT-REPORT-RQ sent by the SCP.
type NEventReport struct {
	MessageID      uint16
	SOPClassUID    string
	SOPInstanceUID string
	EventTypeID    uint16
	Dataset        *dicom.Dataset
}

// ReceiveNEventReport waits for an N-EVENT-REPORT-RQ from the SCP, such as a
// storage commitment result, and answers it with status. A zero timeout
// uses the association's read timeout.
func (a *Association) ReceiveNEventReport(timeout time.Duration, status uint16) (*NEventReport, error) {
	if timeout == 0 {
		timeout = a.timeout
	}
	pcid, msg, _, err := a.engine.ReceiveCommand(a.conn, dimse.Blocking, timeout)
	if err != nil {
		return nil, err
	}
	rq, ok := msg.(*dimse.NEventReportRQ)
	if !ok {
		return nil, dimseerrors.New(dimseerrors.UnexpectedRequest, "expected N-EVENT-REPORT-RQ, got %s", msg.Command())
	}
	report := &NEventReport{
		MessageID:      rq.MessageID,
		SOPClassUID:    rq.AffectedSOPClassUID,
		SOPInstanceUID: rq.AffectedSOPInstanceUID,
		EventTypeID:    rq.EventTypeID,
	}
	if dimse.IsDataSetPresent(rq) {
		if _, report.Dataset, err = a.engine.ReceiveDataSet(a.conn, dimse.Blocking, timeout, nil); err != nil {
			return nil, err
		}
	}

	rsp, err := dimse.NewNResponse(rq, status)
	if err != nil {
		return nil, err
	}
	if err := a.engine.SendNResponse(a.conn, pcid, rsp, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to send N-EVENT-REPORT-RSP: %w", err)
	}
	a.logger.Debug("N-EVENT-REPORT received", "event_type", rq.EventTypeID)
	return report, nil
}
