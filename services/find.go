package services

import (
	"context"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
)

// FindService answers C-FIND requests from an instance store, one pending
// response per match.
type FindService struct {
	Store interfaces.InstanceStore
}

// NewFindService creates a query SCP over store.
func NewFindService(store interfaces.InstanceStore) *FindService {
	return &FindService{Store: store}
}

func (s *FindService) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	rq, ok := req.Message.(*dimse.FindRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "find service got %s", req.Message.Command())
	}
	logger := requestLogger(req)

	var (
		matches []*dicom.Dataset
		failure *dimse.FindMatch
	)
	err := req.Engine.FindProvider(req.Conn, req.ContextID, rq, func(cancelled bool, _ *dimse.FindRQ, keys *dicom.Dataset, count int) dimse.FindMatch {
		if count == 1 {
			var err error
			if matches, err = s.Store.Find(keys); err != nil {
				logger.WarnContext(ctx, "C-FIND identifier rejected", "error", err)
				failure = &dimse.FindMatch{Status: dimse.StatusIdentifierDoesNotMatch, StatusDetail: ErrorComment(err.Error())}
			}
		}
		switch {
		case failure != nil:
			return *failure
		case cancelled:
			logger.InfoContext(ctx, "C-FIND cancelled", "sent", count-1)
			return dimse.FindMatch{Status: dimse.StatusCancel}
		case count > len(matches):
			return dimse.FindMatch{Status: dimse.StatusSuccess}
		}
		return dimse.FindMatch{Status: dimse.StatusPending, Identifier: matches[count-1]}
	}, dimse.Blocking, req.Timeout)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "C-FIND completed", "matches", len(matches))
	return nil
}
