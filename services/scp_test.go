package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/pdu"
	"github.com/caio-sobreiro/dimsenet/types"
)

const testTimeout = 5 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer runs a registry on a loopback listener, one association at a
// time.
type testServer struct {
	ln   *pdu.Listener
	errs chan error
}

func startServer(t *testing.T, reg *Registry, policy pdu.AcceptPolicy, timeout time.Duration) *testServer {
	t.Helper()
	if policy == nil {
		policy = reg.AcceptPolicy()
	}
	ln, err := pdu.Listen("127.0.0.1:0", pdu.Config{AETitle: "ARCHIVE", Policy: policy, Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &testServer{ln: ln, errs: make(chan error, 8)}
	engine := dimse.New(dimse.Config{Logger: quietLogger()})
	go func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, dimseerrors.ErrConnectionClosed) {
				return
			}
			if err != nil {
				continue
			}
			s.errs <- reg.Serve(context.Background(), engine, conn, timeout, quietLogger())
		}
	}()
	return s
}

func (s *testServer) connect(t *testing.T, abstractSyntaxes ...string) *client.Association {
	t.Helper()
	assoc, err := client.Connect(s.ln.Addr().String(), client.Config{
		CallingAETitle:   "MODALITY",
		CalledAETitle:    "ARCHIVE",
		ReadTimeout:      testTimeout,
		Logger:           quietLogger(),
		AbstractSyntaxes: abstractSyntaxes,
	})
	require.NoError(t, err)
	return assoc
}

// wait returns what Serve returned for the last association.
func (s *testServer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.errs:
		return err
	case <-time.After(testTimeout):
		t.Fatal("registry did not finish serving")
		return nil
	}
}

func (s *testServer) release(t *testing.T, assoc *client.Association) {
	t.Helper()
	require.NoError(t, assoc.Release())
	require.NoError(t, s.wait(t))
}

func instance(sopClass, patientID, study, series, uid string) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.SOPClassUID, dicom.VR_UI, sopClass)
	ds.AddElement(dicom.SOPInstanceUID, dicom.VR_UI, uid)
	ds.AddElement(dicom.StudyDate, dicom.VR_DA, "20240115")
	ds.AddElement(dicom.Modality, dicom.VR_CS, "CT")
	ds.AddElement(dicom.PatientName, dicom.VR_PN, "DOE^"+patientID)
	ds.AddElement(dicom.PatientID, dicom.VR_LO, patientID)
	ds.AddElement(dicom.StudyInstanceUID, dicom.VR_UI, study)
	ds.AddElement(dicom.SeriesInstanceUID, dicom.VR_UI, series)
	return ds
}

// sampleArchive holds two CT studies of patient P1 and one MR study of P2.
func sampleArchive(t *testing.T) *Archive {
	t.Helper()
	a := NewArchive()
	for _, ds := range []*dicom.Dataset{
		instance(types.CTImageStorage, "P1", "1.1", "1.1.1", "1.1.1.1"),
		instance(types.CTImageStorage, "P1", "1.1", "1.1.1", "1.1.1.2"),
		instance(types.CTImageStorage, "P1", "1.2", "1.2.1", "1.2.1.1"),
		instance(types.MRImageStorage, "P2", "2.1", "2.1.1", "2.1.1.1"),
	} {
		_, err := a.Put(ds)
		require.NoError(t, err)
	}
	return a
}

func studyQuery(studyUID string) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.QueryRetrieveLevel, dicom.VR_CS, LevelStudy)
	ds.AddElement(dicom.StudyInstanceUID, dicom.VR_UI, studyUID)
	return ds
}
