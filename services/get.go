package services

import (
	"context"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
	"github.com/caio-sobreiro/dimsenet/types"
)

// GetService handles C-GET requests: matching instances are sent back to the
// requester as C-STOREs on the same association.
type GetService struct {
	Store interfaces.InstanceStore
}

// NewGetService creates a C-GET SCP over store.
func NewGetService(store interfaces.InstanceStore) *GetService {
	return &GetService{Store: store}
}

func (s *GetService) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	rq, ok := req.Message.(*dimse.GetRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "get service got %s", req.Message.Command())
	}
	logger := requestLogger(req)

	var r *retrieval
	store := func(inst *interfaces.Instance) (uint16, error) {
		res, err := req.Engine.StoreUser(req.Conn, 0, dimse.StoreRequest{
			Message: &dimse.StoreRQ{
				MessageID:              req.Conn.NextMessageID(),
				AffectedSOPClassUID:    inst.SOPClassUID,
				AffectedSOPInstanceUID: inst.SOPInstanceUID,
				DataSetType:            types.DataSetTypePresent,
			},
			Dataset: inst.Dataset,
			Mode:    dimse.Blocking,
			Timeout: req.Timeout,
		})
		if res != nil && res.Cancel != nil && res.Cancel.Request.MessageIDBeingRespondedTo == rq.MessageID {
			r.cancelled = true
		}
		if err != nil || res.Response == nil {
			logger.WarnContext(ctx, "C-STORE sub-operation failed", "sop_instance", inst.SOPInstanceUID, "error", err)
			return dimse.StatusSuccess, err
		}
		return res.Response.Status, nil
	}

	err := req.Engine.GetProvider(req.Conn, req.ContextID, rq, func(cancelled bool, _ *dimse.GetRQ, keys *dicom.Dataset, count int) dimse.SubOpResult {
		if count == 1 {
			r = newRetrieval(s.Store.Select(keys))
		}
		return r.step(cancelled, count, store)
	}, dimse.Blocking, req.Timeout)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "C-GET completed",
		"completed", r.counts.Completed,
		"failed", r.counts.Failed,
		"warning", r.counts.Warning)
	return nil
}
