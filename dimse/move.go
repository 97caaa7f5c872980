package dimse

import (
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// StoreSubOpFunc serves a C-STORE-RQ that arrived as part of a C-GET. It
// must receive the data set and answer the request.
type StoreSubOpFunc func(assoc Association, pcid byte, req *StoreRQ) error

// RetrieveOptions configure MoveUser and GetUser.
type RetrieveOptions struct {
	Mode    BlockMode
	Timeout time.Duration
	// Listener and SubOps serve the sub-associations of a C-MOVE whose
	// destination is the caller. Leave both nil when it is another AE.
	Listener Listener
	SubOps   SubOpHandler
	// Store serves C-GET sub-operations. Nil stores into memory and
	// discards.
	Store StoreSubOpFunc
}

// MoveResponseFunc receives every pending C-MOVE-RSP.
type MoveResponseFunc func(count int, rsp *MoveRSP, identifier *dicom.Dataset)

// SubOpResult is produced by retrieve providers for each response to send.
// Identifier usually carries the Failed SOP Instance UID List on the final
// response.
type SubOpResult struct {
	Status uint16
	SubOperations
	Identifier   *dicom.Dataset
	StatusDetail *dicom.Dataset
}

// MoveProviderFunc performs one C-MOVE sub-operation and reports progress.
type MoveProviderFunc func(cancelled bool, req *MoveRQ, keys *dicom.Dataset, count int) SubOpResult

// subOperationOpts reports Remaining only while the exchange is Pending or
// was cancelled.
func subOperationOpts(status uint16) Opts {
	opts := OptAffectedSOPClassUID | OptCompleted | OptFailed | OptWarning
	if IsPending(status) || status == StatusCancel {
		opts |= OptRemaining
	}
	return opts
}

// dropStaleRemaining clears a Remaining count received with a status that
// cannot carry one.
func dropStaleRemaining(status uint16, opts *Opts, s *SubOperations) {
	if !subOperationOpts(status).Has(OptRemaining) {
		*opts &^= OptRemaining
		s.Remaining = 0
	}
}

// MoveUser sends a C-MOVE-RQ and follows its responses until one is not
// pending. When opts carries a SubOpHandler, sub-associations opened towards
// the caller are serviced between responses and drained before returning,
// or handed to AbortSubOperation if the exchange fails.
func (e *Engine) MoveUser(assoc Association, pcid byte, req *MoveRQ, keys *dicom.Dataset, cb MoveResponseFunc, opts RetrieveOptions) (last *MoveRSP, detail *dicom.Dataset, err error) {
	if keys == nil {
		return nil, nil, dimseerrors.New(dimseerrors.NullKey, "C-MOVE-RQ without identifier")
	}
	if opts.Listener != nil && opts.SubOps == nil {
		return nil, nil, dimseerrors.New(dimseerrors.BadMessage, "listener given without a sub-operation handler")
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
		sub   Association
		count int
	)
	defer func() {
		if err != nil && sub != nil {
			e.logger.Warn("Aborting open sub-association", "error", err)
			opts.SubOps.AbortSubOperation(sub)
		}
	}()
	for status := StatusPending; IsPending(status); {
		if opts.SubOps != nil {
			listener := opts.Listener
			if sub != nil {
				listener = nil
			}
			src, err := e.WaitReady(assoc, listener, sub, opts.Timeout)
			if err != nil {
				return last, detail, err
			}
			if src != SourceMain {
				if sub, err = opts.SubOps.HandleSubOperation(listener, sub); err != nil {
					return last, detail, err
				}
				continue
			}
		}

		_, msg, d, err := e.ReceiveCommand(assoc, opts.Mode, opts.Timeout)
		if err != nil {
			return last, detail, err
		}
		rsp, ok := msg.(*MoveRSP)
		if !ok {
			return last, detail, dimseerrors.New(dimseerrors.UnexpectedResponse, "expected C-MOVE-RSP, got %s", msg.Command())
		}
		if rsp.MessageIDBeingRespondedTo != req.MessageID {
			return last, detail, dimseerrors.New(dimseerrors.UnexpectedResponse,
				"C-MOVE-RSP for message %d, expected %d", rsp.MessageIDBeingRespondedTo, req.MessageID)
		}
		dropStaleRemaining(rsp.Status, &rsp.Opts, &rsp.SubOperations)
		last, detail, status = rsp, d, rsp.Status
		count++

		var identifier *dicom.Dataset
		if IsDataSetPresent(rsp) {
			if _, identifier, err = e.ReceiveDataSet(assoc, opts.Mode, opts.Timeout, nil); err != nil {
				return last, detail, err
			}
		}
		e.logger.Debug("C-MOVE-RSP",
			"status", StatusString(ServiceMove, rsp.Status),
			"remaining", rsp.Remaining,
			"completed", rsp.Completed,
			"failed", rsp.Failed,
			"warning", rsp.Warning)
		if cb != nil {
			cb(count, rsp, identifier)
		}
	}

	for sub != nil {
		if sub, err = opts.SubOps.HandleSubOperation(nil, sub); err != nil {
			return last, detail, err
		}
	}
	return last, detail, nil
}

// MoveProvider receives the keys of req and sends the responses produced by
// cb until one is not pending.
func (e *Engine) MoveProvider(assoc Association, pcid byte, req *MoveRQ, cb MoveProviderFunc, mode BlockMode, timeout time.Duration) error {
	keys, err := e.receiveKeys(assoc, pcid, mode, timeout)
	if err != nil {
		return err
	}
	var next func(bool, int) SubOpResult
	if cb != nil {
		next = func(cancelled bool, count int) SubOpResult { return cb(cancelled, req, keys, count) }
	}
	return e.provideSubOperations(assoc, pcid, req.MessageID, next, func(r SubOpResult) error {
		rsp := &MoveRSP{Status: r.Status, SubOperations: r.SubOperations}
		return e.SendMoveResponse(assoc, pcid, req, rsp, r.Identifier, r.StatusDetail)
	})
}

// provideSubOperations is the retrieve provider loop shared by C-MOVE and
// C-GET.
func (e *Engine) provideSubOperations(assoc Association, pcid byte, msgID uint16, next func(cancelled bool, count int) SubOpResult, send func(SubOpResult) error) error {
	if next == nil {
		if err := send(SubOpResult{Status: StatusUnableToProcess}); err != nil {
			return err
		}
		return dimseerrors.New(dimseerrors.NullKey, "no retrieve callback")
	}
	for count, status := 1, StatusPending; IsPending(status); count++ {
		cancelled, err := e.pollCancel(assoc, pcid, msgID)
		if err != nil {
			return err
		}
		r := next(cancelled, count)
		if cancelled {
			r.Status = StatusCancel
			r.Identifier = nil
		}
		if err := send(r); err != nil {
			return err
		}
		status = r.Status
	}
	return nil
}

// SendMoveResponse sends rsp for req. The optional fields are derived from
// the status.
func (e *Engine) SendMoveResponse(assoc Association, pcid byte, req *MoveRQ, rsp *MoveRSP, identifier, statusDetail *dicom.Dataset) error {
	rsp.MessageIDBeingRespondedTo = req.MessageID
	rsp.AffectedSOPClassUID = req.AffectedSOPClassUID
	rsp.Opts = subOperationOpts(rsp.Status)
	if !rsp.Opts.Has(OptRemaining) {
		rsp.Remaining = 0
	}
	rsp.DataSetType = dataSetTypeFor(identifier)
	return e.SendMessage(assoc, pcid, rsp, identifier, statusDetail, nil)
}
