package dimse

import (
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// FindResponseFunc receives every pending C-FIND-RSP with its identifier.
// count starts at 1.
type FindResponseFunc func(count int, rsp *FindRSP, identifier *dicom.Dataset)

// FindUser sends a C-FIND-RQ with keys and collects responses until a
// non-pending status arrives. The final response and its status detail are
// returned.
func (e *Engine) FindUser(assoc Association, pcid byte, req *FindRQ, keys *dicom.Dataset, cb FindResponseFunc, mode BlockMode, timeout time.Duration) (*FindRSP, *dicom.Dataset, error) {
	if keys == nil {
		return nil, nil, dimseerrors.New(dimseerrors.NullKey, "C-FIND-RQ without identifier")
	}
	if pcid == 0 {
		id, ok := FindAcceptedContext(assoc, req.AffectedSOPClassUID, "")
		if !ok {
			return nil, nil, dimseerrors.New(dimseerrors.InvalidPresentationContextID, "no accepted context for %s", req.AffectedSOPClassUID)
		}
		pcid = id
	}
	req.DataSetType = types.DataSetTypePresent
	if err := e.SendMessage(assoc, pcid, req, keys, nil, nil); err != nil {
		return nil, nil, err
	}

	var (
		last   *FindRSP
		detail *dicom.Dataset
		count  int
	)
	for status := StatusPending; IsPending(status); {
		_, msg, d, err := e.ReceiveCommand(assoc, mode, timeout)
		if err != nil {
			return last, detail, err
		}
		rsp, ok := msg.(*FindRSP)
		if !ok {
			return last, detail, dimseerrors.New(dimseerrors.UnexpectedResponse, "expected C-FIND-RSP, got %s", msg.Command())
		}
		if rsp.MessageIDBeingRespondedTo != req.MessageID {
			return last, detail, dimseerrors.New(dimseerrors.UnexpectedResponse,
				"C-FIND-RSP for message %d, expected %d", rsp.MessageIDBeingRespondedTo, req.MessageID)
		}
		last, detail, status = rsp, d, rsp.Status
		count++

		if !IsPending(status) {
			if IsDataSetPresent(rsp) {
				e.logger.Warn("Final C-FIND-RSP carries a data set, discarding",
					"status", StatusString(ServiceFind, status))
				if _, _, err := e.IgnoreDataSet(assoc, mode, timeout); err != nil {
					return last, detail, err
				}
			}
			break
		}

		if detail != nil {
			e.logger.Warn("Pending C-FIND-RSP with status detail, ignoring detail")
			detail = nil
		}
		var identifier *dicom.Dataset
		if IsDataSetPresent(rsp) {
			if _, identifier, err = e.ReceiveDataSet(assoc, mode, timeout, nil); err != nil {
				return last, detail, err
			}
		} else {
			e.logger.Warn("Pending C-FIND-RSP without identifier")
		}
		if cb != nil {
			cb(count, rsp, identifier)
		}
	}
	return last, detail, nil
}

// FindMatch is produced by a FindProviderFunc for each response to send.
type FindMatch struct {
	Status       uint16
	Identifier   *dicom.Dataset
	StatusDetail *dicom.Dataset
}

// FindProviderFunc yields the next C-FIND response. cancelled reports that
// the peer asked to stop; the response is forced to Cancel in that case.
type FindProviderFunc func(cancelled bool, req *FindRQ, keys *dicom.Dataset, count int) FindMatch

// FindProvider receives the keys of req and sends responses produced by cb
// until one of them is not pending. A C-CANCEL-RQ is checked for before
// every response.
func (e *Engine) FindProvider(assoc Association, pcid byte, req *FindRQ, cb FindProviderFunc, mode BlockMode, timeout time.Duration) error {
	keys, err := e.receiveKeys(assoc, pcid, mode, timeout)
	if err != nil {
		return err
	}

	for count, status := 1, StatusPending; IsPending(status); count++ {
		cancelled, err := e.pollCancel(assoc, pcid, req.MessageID)
		if err != nil {
			return err
		}
		if cb == nil {
			rsp := &FindRSP{Status: StatusUnableToProcess}
			if err := e.SendFindResponse(assoc, pcid, req, rsp, nil, nil); err != nil {
				return err
			}
			return dimseerrors.New(dimseerrors.NullKey, "no C-FIND callback")
		}
		m := cb(cancelled, req, keys, count)
		if cancelled {
			m.Status = StatusCancel
			m.Identifier = nil
		}
		rsp := &FindRSP{Status: m.Status}
		if err := e.SendFindResponse(assoc, pcid, req, rsp, m.Identifier, m.StatusDetail); err != nil {
			return err
		}
		status = m.Status
	}
	return nil
}

// receiveKeys reads the identifier following a request on pcid.
func (e *Engine) receiveKeys(assoc Association, pcid byte, mode BlockMode, timeout time.Duration) (*dicom.Dataset, error) {
	dataPCID, keys, err := e.ReceiveDataSet(assoc, mode, timeout, nil)
	if err != nil {
		return nil, err
	}
	if dataPCID != pcid {
		return nil, dimseerrors.New(dimseerrors.InvalidPresentationContextID,
			"command on context %d, data set on context %d", pcid, dataPCID)
	}
	return keys, nil
}

// pollCancel reports whether a C-CANCEL-RQ for msgID arrived. Nothing
// arriving is not an error.
func (e *Engine) pollCancel(assoc Association, pcid byte, msgID uint16) (bool, error) {
	err := e.CheckForCancelRQ(assoc, pcid, msgID)
	switch {
	case err == nil:
		return true, nil
	case dimseerrors.KindOf(err) == dimseerrors.NoDataAvailable:
		return false, nil
	}
	return false, err
}

// SendFindResponse sends rsp for req, with identifier as its data set when
// not nil.
func (e *Engine) SendFindResponse(assoc Association, pcid byte, req *FindRQ, rsp *FindRSP, identifier, statusDetail *dicom.Dataset) error {
	rsp.MessageIDBeingRespondedTo = req.MessageID
	rsp.AffectedSOPClassUID = req.AffectedSOPClassUID
	rsp.Opts = OptAffectedSOPClassUID
	rsp.DataSetType = dataSetTypeFor(identifier)
	return e.SendMessage(assoc, pcid, rsp, identifier, statusDetail, nil)
}

func dataSetTypeFor(ds *dicom.Dataset) uint16 {
	if ds == nil {
		return types.DataSetTypeNull
	}
	return types.DataSetTypePresent
}
