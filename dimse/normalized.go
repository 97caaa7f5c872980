package dimse

import (
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// NResult is the outcome of an N-* request. Dataset is the data set that
// followed the response, if any.
type NResult[T Response] struct {
	Response     T
	Dataset      *dicom.Dataset
	StatusDetail *dicom.Dataset
}

// normalizedExchange sends req with its optional data set and reads the one
// response of type T, plus its data set when announced.
func normalizedExchange[T Response](e *Engine, assoc Association, pcid byte, sopClass string, req Request, data *dicom.Dataset, mode BlockMode, timeout time.Duration) (*NResult[T], error) {
	if pcid == 0 {
		id, ok := FindAcceptedContext(assoc, sopClass, "")
		if !ok {
			return nil, dimseerrors.New(dimseerrors.InvalidPresentationContextID, "no accepted context for %s", sopClass)
		}
		pcid = id
	}
	if err := e.SendMessage(assoc, pcid, req, data, nil, nil); err != nil {
		return nil, err
	}

	_, msg, detail, err := e.ReceiveCommand(assoc, mode, timeout)
	if err != nil {
		return nil, err
	}
	want := types.ResponseCommandFor(req.Command())
	rsp, ok := msg.(T)
	if !ok {
		return nil, dimseerrors.New(dimseerrors.UnexpectedResponse, "expected %s, got %s", want, msg.Command())
	}
	if rsp.RespondsTo() != req.ID() {
		return nil, dimseerrors.New(dimseerrors.UnexpectedResponse,
			"%s for message %d, expected %d", want, rsp.RespondsTo(), req.ID())
	}
	res := &NResult[T]{Response: rsp, StatusDetail: detail}
	if IsDataSetPresent(rsp) {
		if _, res.Dataset, err = e.ReceiveDataSet(assoc, mode, timeout, nil); err != nil {
			return res, err
		}
	}
	return res, nil
}

// NEventReportUser sends an N-EVENT-REPORT-RQ with optional event
// information and waits for the response.
func (e *Engine) NEventReportUser(assoc Association, pcid byte, req *NEventReportRQ, info *dicom.Dataset, mode BlockMode, timeout time.Duration) (*NResult[*NEventReportRSP], error) {
	req.DataSetType = dataSetTypeFor(info)
	return normalizedExchange[*NEventReportRSP](e, assoc, pcid, req.AffectedSOPClassUID, req, info, mode, timeout)
}

// NGetUser requests the attributes listed in req, or all of them when the
// list is empty.
func (e *Engine) NGetUser(assoc Association, pcid byte, req *NGetRQ, mode BlockMode, timeout time.Duration) (*NResult[*NGetRSP], error) {
	req.DataSetType = types.DataSetTypeNull
	return normalizedExchange[*NGetRSP](e, assoc, pcid, req.RequestedSOPClassUID, req, nil, mode, timeout)
}

// NSetUser sends the modification list of an N-SET-RQ.
func (e *Engine) NSetUser(assoc Association, pcid byte, req *NSetRQ, modifications *dicom.Dataset, mode BlockMode, timeout time.Duration) (*NResult[*NSetRSP], error) {
	if modifications == nil {
		return nil, dimseerrors.New(dimseerrors.NullKey, "N-SET-RQ without modification list")
	}
	req.DataSetType = types.DataSetTypePresent
	return normalizedExchange[*NSetRSP](e, assoc, pcid, req.RequestedSOPClassUID, req, modifications, mode, timeout)
}

// NActionUser sends an N-ACTION-RQ with optional action information.
func (e *Engine) NActionUser(assoc Association, pcid byte, req *NActionRQ, info *dicom.Dataset, mode BlockMode, timeout time.Duration) (*NResult[*NActionRSP], error) {
	req.DataSetType = dataSetTypeFor(info)
	return normalizedExchange[*NActionRSP](e, assoc, pcid, req.RequestedSOPClassUID, req, info, mode, timeout)
}

// NCreateUser sends an N-CREATE-RQ with optional initial attributes.
func (e *Engine) NCreateUser(assoc Association, pcid byte, req *NCreateRQ, attrs *dicom.Dataset, mode BlockMode, timeout time.Duration) (*NResult[*NCreateRSP], error) {
	req.DataSetType = dataSetTypeFor(attrs)
	return normalizedExchange[*NCreateRSP](e, assoc, pcid, req.AffectedSOPClassUID, req, attrs, mode, timeout)
}

// NDeleteUser sends an N-DELETE-RQ.
func (e *Engine) NDeleteUser(assoc Association, pcid byte, req *NDeleteRQ, mode BlockMode, timeout time.Duration) (*NResult[*NDeleteRSP], error) {
	req.DataSetType = types.DataSetTypeNull
	return normalizedExchange[*NDeleteRSP](e, assoc, pcid, req.RequestedSOPClassUID, req, nil, mode, timeout)
}

// NewNResponse builds the response to an N-* request with the identifying
// fields copied from it. The SOP class and instance are the requested or
// affected ones of req.
func NewNResponse(req Request, status uint16) (Response, error) {
	opts := OptAffectedSOPClassUID | OptAffectedSOPInstanceUID
	switch m := req.(type) {
	case *NEventReportRQ:
		return &NEventReportRSP{
			MessageIDBeingRespondedTo: m.MessageID,
			AffectedSOPClassUID:       m.AffectedSOPClassUID,
			AffectedSOPInstanceUID:    m.AffectedSOPInstanceUID,
			EventTypeID:               m.EventTypeID,
			Status:                    status,
			Opts:                      opts | OptEventTypeID,
		}, nil
	case *NGetRQ:
		return &NGetRSP{
			MessageIDBeingRespondedTo: m.MessageID,
			AffectedSOPClassUID:       m.RequestedSOPClassUID,
			AffectedSOPInstanceUID:    m.RequestedSOPInstanceUID,
			Status:                    status,
			Opts:                      opts,
		}, nil
	case *NSetRQ:
		return &NSetRSP{
			MessageIDBeingRespondedTo: m.MessageID,
			AffectedSOPClassUID:       m.RequestedSOPClassUID,
			AffectedSOPInstanceUID:    m.RequestedSOPInstanceUID,
			Status:                    status,
			Opts:                      opts,
		}, nil
	case *NActionRQ:
		return &NActionRSP{
			MessageIDBeingRespondedTo: m.MessageID,
			AffectedSOPClassUID:       m.RequestedSOPClassUID,
			AffectedSOPInstanceUID:    m.RequestedSOPInstanceUID,
			ActionTypeID:              m.ActionTypeID,
			Status:                    status,
			Opts:                      opts | OptActionTypeID,
		}, nil
	case *NCreateRQ:
		rsp := &NCreateRSP{
			MessageIDBeingRespondedTo: m.MessageID,
			AffectedSOPClassUID:       m.AffectedSOPClassUID,
			AffectedSOPInstanceUID:    m.AffectedSOPInstanceUID,
			Status:                    status,
			Opts:                      OptAffectedSOPClassUID,
		}
		if rsp.AffectedSOPInstanceUID != "" {
			rsp.Opts |= OptAffectedSOPInstanceUID
		}
		return rsp, nil
	case *NDeleteRQ:
		return &NDeleteRSP{
			MessageIDBeingRespondedTo: m.MessageID,
			AffectedSOPClassUID:       m.RequestedSOPClassUID,
			AffectedSOPInstanceUID:    m.RequestedSOPInstanceUID,
			Status:                    status,
			Opts:                      opts,
		}, nil
	}
	return nil, dimseerrors.New(dimseerrors.BadMessage, "%s is not an N-* request", req.Command())
}

// SendNResponse sends an N-* response with data as its data set when not
// nil.
func (e *Engine) SendNResponse(assoc Association, pcid byte, rsp Response, data, statusDetail *dicom.Dataset) error {
	dst := dataSetTypeFor(data)
	switch m := rsp.(type) {
	case *NEventReportRSP:
		m.DataSetType = dst
	case *NGetRSP:
		m.DataSetType = dst
	case *NSetRSP:
		m.DataSetType = dst
	case *NActionRSP:
		m.DataSetType = dst
	case *NCreateRSP:
		m.DataSetType = dst
	case *NDeleteRSP:
		m.DataSetType = dst
	default:
		return dimseerrors.New(dimseerrors.BadMessage, "%s is not an N-* response", rsp.Command())
	}
	return e.SendMessage(assoc, pcid, rsp, data, statusDetail, nil)
}
