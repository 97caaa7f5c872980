package dimse

import (
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// GetResponseFunc receives every pending C-GET-RSP.
type GetResponseFunc func(count int, rsp *GetRSP, identifier *dicom.Dataset)

// GetProviderFunc performs one C-GET sub-operation, normally a StoreUser
// call on the same association, and reports progress.
type GetProviderFunc func(cancelled bool, req *GetRQ, keys *dicom.Dataset, count int) SubOpResult

// GetUser sends a C-GET-RQ and follows its responses until one is not
// pending. C-STORE-RQs arriving on the association in between are passed to
// opts.Store.
func (e *Engine) GetUser(assoc Association, pcid byte, req *GetRQ, keys *dicom.Dataset, cb GetResponseFunc, opts RetrieveOptions) (*GetRSP, *dicom.Dataset, error) {
	if keys == nil {
		return nil, nil, dimseerrors.New(dimseerrors.NullKey, "C-GET-RQ without identifier")
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

	store := opts.Store
	if store == nil {
		store = func(assoc Association, pcid byte, rq *StoreRQ) error {
			_, err := e.StoreProvider(assoc, pcid, rq, StoreProviderOptions{Mode: opts.Mode, Timeout: opts.Timeout})
			return err
		}
	}

	var (
		last   *GetRSP
		detail *dicom.Dataset
		count  int
	)
	for status := StatusPending; IsPending(status); {
		cpcid, msg, d, err := e.ReceiveCommand(assoc, opts.Mode, opts.Timeout)
		if err != nil {
			return last, detail, err
		}
		switch m := msg.(type) {
		case *StoreRQ:
			err := store(assoc, cpcid, m)
			if dimseerrors.KindOf(err) == dimseerrors.OutOfResources {
				e.logger.Warn("C-GET sub-operation could not be stored", "error", err)
				continue
			}
			if err != nil {
				return last, detail, err
			}
		case *GetRSP:
			if m.MessageIDBeingRespondedTo != req.MessageID {
				return last, detail, dimseerrors.New(dimseerrors.UnexpectedResponse,
					"C-GET-RSP for message %d, expected %d", m.MessageIDBeingRespondedTo, req.MessageID)
			}
			dropStaleRemaining(m.Status, &m.Opts, &m.SubOperations)
			last, detail, status = m, d, m.Status
			count++

			var identifier *dicom.Dataset
			if IsDataSetPresent(m) {
				if _, identifier, err = e.ReceiveDataSet(assoc, opts.Mode, opts.Timeout, nil); err != nil {
					return last, detail, err
				}
			}
			e.logger.Debug("C-GET-RSP",
				"status", StatusString(ServiceGet, m.Status),
				"remaining", m.Remaining,
				"completed", m.Completed,
				"failed", m.Failed,
				"warning", m.Warning)
			if cb != nil {
				cb(count, m, identifier)
			}
		default:
			return last, detail, dimseerrors.New(dimseerrors.UnexpectedResponse, "expected C-GET-RSP or C-STORE-RQ, got %s", msg.Command())
		}
	}
	return last, detail, nil
}

// GetProvider receives the keys of req and sends the responses produced by
// cb until one is not pending.
func (e *Engine) GetProvider(assoc Association, pcid byte, req *GetRQ, cb GetProviderFunc, mode BlockMode, timeout time.Duration) error {
	keys, err := e.receiveKeys(assoc, pcid, mode, timeout)
	if err != nil {
		return err
	}
	var next func(bool, int) SubOpResult
	if cb != nil {
		next = func(cancelled bool, count int) SubOpResult { return cb(cancelled, req, keys, count) }
	}
	return e.provideSubOperations(assoc, pcid, req.MessageID, next, func(r SubOpResult) error {
		rsp := &GetRSP{Status: r.Status, SubOperations: r.SubOperations}
		return e.SendGetResponse(assoc, pcid, req, rsp, r.Identifier, r.StatusDetail)
	})
}

// SendGetResponse sends rsp for req with the same optional field rule as
// SendMoveResponse.
func (e *Engine) SendGetResponse(assoc Association, pcid byte, req *GetRQ, rsp *GetRSP, identifier, statusDetail *dicom.Dataset) error {
	rsp.MessageIDBeingRespondedTo = req.MessageID
	rsp.AffectedSOPClassUID = req.AffectedSOPClassUID
	rsp.Opts = subOperationOpts(rsp.Status)
	if !rsp.Opts.Has(OptRemaining) {
		rsp.Remaining = 0
	}
	rsp.DataSetType = dataSetTypeFor(identifier)
	return e.SendMessage(assoc, pcid, rsp, identifier, statusDetail, nil)
}
