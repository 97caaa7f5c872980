package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
)

// StoreService handles C-STORE requests. Instances are kept in Store; when
// Directory is set they are also written there as Part 10 files named after
// their SOP Instance UID.
type StoreService struct {
	Store     interfaces.InstanceStore
	Directory string
}

// NewStoreService creates a storage SCP backed by store. An empty directory
// keeps instances in memory only.
func NewStoreService(store interfaces.InstanceStore, directory string) *StoreService {
	return &StoreService{Store: store, Directory: directory}
}

func (s *StoreService) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	rq, ok := req.Message.(*dimse.StoreRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "store service got %s", req.Message.Command())
	}
	logger := requestLogger(req).With("sop_instance", rq.AffectedSOPInstanceUID)

	opts := dimse.StoreProviderOptions{
		Mode:     dimse.Blocking,
		Timeout:  req.Timeout,
		SourceAE: req.Conn.RemoteAETitle(),
	}
	if s.Directory != "" {
		if err := os.MkdirAll(s.Directory, 0o755); err != nil {
			logger.WarnContext(ctx, "Cannot create storage directory", "error", err)
		}
		opts.Path = filepath.Join(s.Directory, rq.AffectedSOPInstanceUID+".dcm")
		opts.WriteMeta = true
	}
	opts.Callback = func(ev *dimse.StoreEvent) {
		if ev.Progress.State != dimse.ProgressEnd || ev.Response.Status != dimse.StatusSuccess {
			return
		}
		if err := s.keep(ev); err != nil {
			logger.WarnContext(ctx, "C-STORE not kept", "error", err)
			ev.Response.Status = dimse.StatusUnableToProcess
			ev.StatusDetail = ErrorComment(err.Error())
		}
	}

	ev, err := req.Engine.StoreProvider(req.Conn, req.ContextID, rq, opts)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "C-STORE completed",
		"sop_class", rq.AffectedSOPClassUID,
		"status", dimse.StatusString(dimse.ServiceStore, ev.Response.Status))
	return nil
}

// keep hands the received instance to the store.
func (s *StoreService) keep(ev *dimse.StoreEvent) error {
	ds := ev.Dataset
	if ev.Path != "" {
		f, err := dicom.ReadFile(ev.Path)
		if err != nil {
			return err
		}
		ds = f.Dataset
	}
	if ds == nil {
		return fmt.Errorf("no data set received")
	}
	if uid := ds.GetString(dicom.SOPInstanceUID); uid != ev.Request.AffectedSOPInstanceUID {
		return fmt.Errorf("data set instance %q does not match request %q", uid, ev.Request.AffectedSOPInstanceUID)
	}
	_, err := s.Store.Put(ds)
	return err
}
