package dimse

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

func studyKeys() *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.QueryRetrieveLevel, dicom.VR_CS, "STUDY")
	ds.AddElement(dicom.PatientID, dicom.VR_LO, "")
	return ds
}

func testFindRQ(msgID uint16) *FindRQ {
	return &FindRQ{MessageID: msgID, AffectedSOPClassUID: types.StudyRootQueryRetrieveInformationModelFind}
}

func matchFor(count int) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.QueryRetrieveLevel, dicom.VR_CS, "STUDY")
	ds.AddElement(dicom.PatientID, dicom.VR_LO, fmt.Sprintf("PID-%d", count))
	return ds
}

// serveFind answers one C-FIND with n matches.
func serveFind(e *Engine, provider Association, n int, seen *[]bool) <-chan error {
	return goProvider(func() error {
		pcid, msg, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
		if err != nil {
			return err
		}
		req, ok := msg.(*FindRQ)
		if !ok {
			return dimseerrors.New(dimseerrors.UnexpectedRequest, "got %s", msg.Command())
		}
		return e.FindProvider(provider, pcid, req, func(cancelled bool, _ *FindRQ, keys *dicom.Dataset, count int) FindMatch {
			if seen != nil {
				*seen = append(*seen, cancelled)
			}
			if count > n {
				return FindMatch{Status: StatusSuccess}
			}
			return FindMatch{Status: StatusPending, Identifier: matchFor(count)}
		}, Blocking, time.Second)
	})
}

func TestFindPendingThenSuccess(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())
	done := serveFind(e, provider, 3, nil)

	var ids []string
	rsp, detail, err := e.FindUser(user, 0, testFindRQ(1), studyKeys(), func(count int, rsp *FindRSP, identifier *dicom.Dataset) {
		assert.Equal(t, len(ids)+1, count)
		assert.Equal(t, StatusPending, rsp.Status)
		ids = append(ids, identifier.GetString(dicom.PatientID))
	}, Blocking, time.Second)
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"PID-1", "PID-2", "PID-3"}, ids)
	assert.Equal(t, StatusSuccess, rsp.Status)
	assert.Equal(t, types.DataSetTypeNull, rsp.DataSetType)
	assert.Nil(t, detail)
}

func TestFindCancelledMidway(t *testing.T) {
	userEngine := testEngine()
	providerEngine := New(Config{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		CancelPollTimeout: 200 * time.Millisecond,
	})
	user, provider := newPipe(16384, testContexts())

	var seen []bool
	done := serveFind(providerEngine, provider, 10, &seen)

	req := testFindRQ(4)
	var callbacks int
	rsp, _, err := userEngine.FindUser(user, pcFind, req, studyKeys(), func(count int, _ *FindRSP, _ *dicom.Dataset) {
		callbacks++
		if count == 2 {
			require.NoError(t, userEngine.SendCancelRequest(user, pcFind, req.MessageID))
		}
	}, Blocking, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.Equal(t, 2, callbacks, "no identifier callback after the cancel")
	assert.Equal(t, StatusCancel, rsp.Status)
	assert.Equal(t, types.DataSetTypeNull, rsp.DataSetType)
	assert.Equal(t, []bool{false, false, true}, seen)
}

func TestFindUserWithoutKeys(t *testing.T) {
	e := testEngine()
	user, _ := newPipe(16384, testContexts())

	_, _, err := e.FindUser(user, pcFind, testFindRQ(1), nil, nil, Blocking, time.Second)
	assert.ErrorIs(t, err, dimseerrors.ErrNullKey)
	assert.Empty(t, user.written)
}

func TestFindProviderWithoutCallback(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())

	done := goProvider(func() error {
		pcid, msg, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
		if err != nil {
			return err
		}
		return e.FindProvider(provider, pcid, msg.(*FindRQ), nil, Blocking, time.Second)
	})

	rsp, _, err := e.FindUser(user, pcFind, testFindRQ(2), studyKeys(), nil, Blocking, time.Second)
	require.NoError(t, err)
	assert.ErrorIs(t, <-done, dimseerrors.ErrNullKey)
	assert.Equal(t, StatusUnableToProcess, rsp.Status)
}

func TestFindUserRejectsForeignResponse(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())

	done := goProvider(func() error {
		pcid, _, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
		if err != nil {
			return err
		}
		if _, _, err := e.IgnoreDataSet(provider, Blocking, time.Second); err != nil {
			return err
		}
		return e.SendEchoResponse(provider, pcid, &EchoRQ{MessageID: 3, AffectedSOPClassUID: types.VerificationSOPClass}, StatusSuccess, nil)
	})

	_, _, err := e.FindUser(user, pcFind, testFindRQ(3), studyKeys(), nil, Blocking, time.Second)
	require.NoError(t, <-done)
	assert.ErrorIs(t, err, dimseerrors.ErrUnexpectedResponse)
}

func TestFindUserDiscardsDataOnFinalResponse(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())

	done := goProvider(func() error {
		pcid, msg, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
		if err != nil {
			return err
		}
		req := msg.(*FindRQ)
		if _, _, err := e.IgnoreDataSet(provider, Blocking, time.Second); err != nil {
			return err
		}
		return e.SendFindResponse(provider, pcid, req, &FindRSP{Status: StatusSuccess}, matchFor(1), nil)
	})

	rsp, _, err := e.FindUser(user, pcFind, testFindRQ(5), studyKeys(), nil, Blocking, time.Second)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSuccess, rsp.Status)
	assert.False(t, user.DataWaiting(0))
}
