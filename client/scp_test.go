package client_test

import (
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

// handlerFunc answers one request received by the test SCP.
type handlerFunc func(e *dimse.Engine, conn *pdu.Conn, pcid byte, msg dimse.Message) error

// testSCP is a minimal provider: it accepts associations one at a time and
// hands every request to handle.
type testSCP struct {
	ln     *pdu.Listener
	engine *dimse.Engine
	handle handlerFunc
	errs   chan error
}

func startSCP(t *testing.T, engineCfg dimse.Config, handle handlerFunc) *testSCP {
	t.Helper()
	ln, err := pdu.Listen("127.0.0.1:0", pdu.Config{AETitle: "TEST_SCP", Logger: quietLogger()})
	require.NoError(t, err)
	engineCfg.Logger = quietLogger()
	s := &testSCP{ln: ln, engine: dimse.New(engineCfg), handle: handle, errs: make(chan error, 16)}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *testSCP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if err == dimseerrors.ErrConnectionClosed {
				return
			}
			continue
		}
		s.errs <- s.run(conn)
	}
}

func (s *testSCP) run(conn *pdu.Conn) error {
	for {
		pcid, msg, _, err := s.engine.ReceiveCommand(conn, dimse.Blocking, testTimeout)
		switch {
		case dimseerrors.KindOf(err) == dimseerrors.PeerRequestedRelease:
			return conn.AcknowledgeRelease()
		case err != nil:
			conn.Close()
			return err
		}
		if err := s.handle(s.engine, conn, pcid, msg); err != nil {
			conn.Abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonNotSpecified)
			return err
		}
	}
}

func (s *testSCP) connect(t *testing.T, abstractSyntaxes ...string) *client.Association {
	t.Helper()
	assoc, err := client.Connect(s.ln.Addr().String(), client.Config{
		CallingAETitle:   "TEST_SCU",
		CalledAETitle:    "TEST_SCP",
		ReadTimeout:      testTimeout,
		Logger:           quietLogger(),
		AbstractSyntaxes: abstractSyntaxes,
	})
	require.NoError(t, err)
	return assoc
}

// finish releases assoc and returns the SCP side's outcome.
func (s *testSCP) finish(t *testing.T, assoc *client.Association) {
	t.Helper()
	require.NoError(t, assoc.Release())
	select {
	case err := <-s.errs:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("provider did not finish")
	}
}

func ctInstance(uid string) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.SOPClassUID, dicom.VR_UI, types.CTImageStorage)
	ds.AddElement(dicom.SOPInstanceUID, dicom.VR_UI, uid)
	ds.AddElement(dicom.PatientName, dicom.VR_PN, "DOE^JANE")
	ds.AddElement(dicom.PatientID, dicom.VR_LO, "PID-1")
	return ds
}

func studyKeys() *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.QueryRetrieveLevel, dicom.VR_CS, "STUDY")
	ds.AddElement(dicom.PatientID, dicom.VR_LO, "")
	ds.AddElement(dicom.StudyInstanceUID, dicom.VR_UI, "")
	return ds
}
