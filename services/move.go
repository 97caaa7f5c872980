package services

import (
	"context"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
)

// MoveService handles C-MOVE requests: matching instances are sent to the
// move destination over a sub-association, one C-STORE per instance.
type MoveService struct {
	Store interfaces.InstanceStore
	// AETitle is the calling AE title of the sub-associations.
	AETitle string
	// Peers maps destination AE titles to host:port addresses.
	Peers map[string]string
}

// NewMoveService creates a retrieve SCP over store that resolves
// destinations through peers.
func NewMoveService(store interfaces.InstanceStore, aeTitle string, peers map[string]string) *MoveService {
	return &MoveService{Store: store, AETitle: aeTitle, Peers: peers}
}

func (s *MoveService) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	rq, ok := req.Message.(*dimse.MoveRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "move service got %s", req.Message.Command())
	}
	logger := requestLogger(req).With("destination", rq.MoveDestination)

	var (
		r   *retrieval
		sub *client.Association
	)
	// The sub-association is released before the final response so the
	// destination is done with it when the originator hears the outcome.
	release := func() {
		if sub == nil {
			return
		}
		if err := sub.Release(); err != nil {
			logger.WarnContext(ctx, "Sub-association release failed", "error", err)
		}
		sub = nil
	}
	defer func() {
		if sub != nil {
			sub.Abort()
		}
	}()

	store := func(inst *interfaces.Instance) (uint16, error) {
		rsp, err := sub.SendCStore(&client.CStoreRequest{
			SOPClassUID:             inst.SOPClassUID,
			SOPInstanceUID:          inst.SOPInstanceUID,
			Dataset:                 inst.Dataset,
			MoveOriginatorAETitle:   req.Conn.RemoteAETitle(),
			MoveOriginatorMessageID: rq.MessageID,
		})
		if rsp == nil {
			logger.WarnContext(ctx, "C-STORE sub-operation failed", "sop_instance", inst.SOPInstanceUID, "error", err)
			return dimse.StatusSuccess, err
		}
		return rsp.Status, err
	}

	err := req.Engine.MoveProvider(req.Conn, req.ContextID, rq, func(cancelled bool, _ *dimse.MoveRQ, keys *dicom.Dataset, count int) dimse.SubOpResult {
		if count == 1 {
			r = newRetrieval(s.Store.Select(keys))
			if len(r.instances) == 0 {
				return r.final()
			}
			addr, known := s.Peers[rq.MoveDestination]
			if !known {
				logger.WarnContext(ctx, "Unknown move destination")
				return dimse.SubOpResult{Status: dimse.StatusMoveDestinationUnknown, StatusDetail: ErrorComment("unknown destination " + rq.MoveDestination)}
			}
			var err error
			sub, err = client.Connect(addr, client.Config{
				CallingAETitle:   s.AETitle,
				CalledAETitle:    rq.MoveDestination,
				ReadTimeout:      req.Timeout,
				Logger:           logger,
				Engine:           req.Engine,
				AbstractSyntaxes: sopClasses(r.instances),
			})
			if err != nil {
				logger.WarnContext(ctx, "Cannot open sub-association", "address", addr, "error", err)
				return r.failAll(dimse.StatusOutOfResourcesSubOps)
			}
		}
		res := r.step(cancelled, count, store)
		if res.Status != dimse.StatusPending {
			release()
		}
		return res
	}, dimse.Blocking, req.Timeout)
	if err != nil {
		return err
	}

	if r != nil {
		logger.InfoContext(ctx, "C-MOVE completed",
			"completed", r.counts.Completed,
			"failed", r.counts.Failed,
			"warning", r.counts.Warning)
	}
	return nil
}

// sopClasses lists the distinct SOP classes of instances in order of first
// appearance.
func sopClasses(instances []*interfaces.Instance) []string {
	seen := make(map[string]bool)
	var out []string
	for _, inst := range instances {
		if !seen[inst.SOPClassUID] {
			seen[inst.SOPClassUID] = true
			out = append(out, inst.SOPClassUID)
		}
	}
	return out
}
