package dimse

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

func testInstanceDataset(pixels int) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.SOPClassUID, dicom.VR_UI, testClass)
	ds.AddElement(dicom.SOPInstanceUID, dicom.VR_UI, testInstance)
	ds.AddElement(dicom.PatientName, dicom.VR_PN, "Doe^John")
	ds.AddElement(dicom.PatientID, dicom.VR_LO, "PID-1")
	ds.AddElement(dicom.PixelData, dicom.VR_OW, make([]byte, pixels))
	return ds
}

func testStoreRQ(msgID uint16) *StoreRQ {
	return &StoreRQ{
		MessageID:              msgID,
		AffectedSOPClassUID:    testClass,
		AffectedSOPInstanceUID: testInstance,
		DataSetType:            types.DataSetTypePresent,
	}
}

// serveStore answers one C-STORE on provider with opts.
func serveStore(e *Engine, provider Association, opts StoreProviderOptions) (<-chan error, *StoreEvent) {
	ev := &StoreEvent{}
	done := goProvider(func() error {
		pcid, msg, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
		if err != nil {
			return err
		}
		req, ok := msg.(*StoreRQ)
		if !ok {
			return dimseerrors.New(dimseerrors.UnexpectedRequest, "got %s", msg.Command())
		}
		got, err := e.StoreProvider(provider, pcid, req, opts)
		if got != nil {
			*ev = *got
		}
		return err
	})
	return done, ev
}

func TestStoreInMemory(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(4096, testContexts())

	var states []ProgressState
	done, ev := serveStore(e, provider, StoreProviderOptions{
		Mode: Blocking,
		Callback: func(ev *StoreEvent) {
			states = append(states, ev.Progress.State)
			if ev.Progress.State == ProgressEnd {
				ev.Response.Status = StatusCoercionOfDataElements
			}
		},
	})

	var userProgress []StoreProgress
	res, err := e.StoreUser(user, 0, StoreRequest{
		Message:  testStoreRQ(5),
		Dataset:  testInstanceDataset(20000),
		Progress: func(p StoreProgress) { userProgress = append(userProgress, p) },
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.Equal(t, StatusCoercionOfDataElements, res.Response.Status)
	assert.Equal(t, uint16(5), res.Response.MessageIDBeingRespondedTo)
	assert.Equal(t, testInstance, res.Response.AffectedSOPInstanceUID)
	assert.Nil(t, res.Cancel)

	require.NotNil(t, ev.Dataset)
	assert.Equal(t, "PID-1", ev.Dataset.GetString(dicom.PatientID))

	require.Greater(t, len(states), 2)
	assert.Equal(t, ProgressBegin, states[0])
	assert.Equal(t, ProgressEnd, states[len(states)-1])
	for _, s := range states[1 : len(states)-1] {
		assert.Equal(t, ProgressProgressing, s)
	}

	require.Greater(t, len(userProgress), 2)
	assert.Equal(t, ProgressBegin, userProgress[0].State)
	assert.Equal(t, 1, userProgress[0].CallbackCount)
	last := userProgress[len(userProgress)-1]
	assert.Equal(t, ProgressEnd, last.State)
	assert.Equal(t, len(userProgress), last.CallbackCount)
	assert.Greater(t, last.ProgressBytes, int64(20000))
}

func TestStoreToFile(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())
	path := filepath.Join(t.TempDir(), "instance.dcm")

	done, _ := serveStore(e, provider, StoreProviderOptions{Path: path, WriteMeta: true, SourceAE: "STORESCP"})
	res, err := e.StoreUser(user, pcCT, StoreRequest{Message: testStoreRQ(6), Dataset: testInstanceDataset(1024)})
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSuccess, res.Response.Status)

	f, err := dicom.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, types.ExplicitVRLittleEndian, f.TransferSyntax)
	assert.Equal(t, testInstance, f.Meta.GetString(dicom.MediaStorageSOPInstanceUID))
	assert.Equal(t, "Doe^John", f.Dataset.GetString(dicom.PatientName))
}

func TestStoreFromFile(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())
	src := filepath.Join(t.TempDir(), "src.dcm")
	require.NoError(t, dicom.WriteFile(src, testInstanceDataset(512), types.ImplicitVRLittleEndian, dicom.EncodeOptions{}))

	done, ev := serveStore(e, provider, StoreProviderOptions{})
	var progress []StoreProgress
	res, err := e.StoreUser(user, pcCT, StoreRequest{
		Message:  testStoreRQ(7),
		File:     src,
		Progress: func(p StoreProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSuccess, res.Response.Status)
	assert.Equal(t, "PID-1", ev.Dataset.GetString(dicom.PatientID))

	fi, err := os.Stat(src)
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), progress[0].TotalBytes)
}

func TestStoreProviderFileCreateFailure(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())
	path := filepath.Join(t.TempDir(), "missing", "dir", "instance.dcm")

	var endSeen bool
	done, _ := serveStore(e, provider, StoreProviderOptions{
		Path: path,
		Callback: func(ev *StoreEvent) {
			if ev.Progress.State == ProgressEnd {
				endSeen = true
			}
		},
	})
	res, err := e.StoreUser(user, pcCT, StoreRequest{Message: testStoreRQ(8), Dataset: testInstanceDataset(64)})
	require.NoError(t, err)

	perr := <-done
	require.ErrorIs(t, perr, dimseerrors.ErrOutOfResources)
	var cond *dimseerrors.Condition
	require.ErrorAs(t, perr, &cond)
	assert.Equal(t, path, cond.Resource)

	assert.Equal(t, StatusOutOfResources, res.Response.Status)
	assert.True(t, endSeen)
	assert.False(t, provider.DataWaiting(0), "data set must have been drained")
}

func TestStoreUserToleratesCancel(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())

	done := goProvider(func() error {
		pcid, msg, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
		if err != nil {
			return err
		}
		req := msg.(*StoreRQ)
		if _, _, err := e.IgnoreDataSet(provider, Blocking, time.Second); err != nil {
			return err
		}
		if err := e.SendCancelRequest(provider, pcMove, 42); err != nil {
			return err
		}
		return e.SendStoreResponse(provider, pcid, req, &StoreRSP{Status: StatusSuccess}, nil)
	})

	res, err := e.StoreUser(user, pcCT, StoreRequest{Message: testStoreRQ(9), Dataset: testInstanceDataset(64)})
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.NotNil(t, res.Cancel)
	assert.Equal(t, pcMove, res.Cancel.ContextID)
	assert.Equal(t, uint16(42), res.Cancel.Request.MessageIDBeingRespondedTo)
	assert.Equal(t, StatusSuccess, res.Response.Status)
}

func TestStoreProviderContextMismatch(t *testing.T) {
	e := testEngine()
	user, provider := newPipe(16384, testContexts())

	req := testStoreRQ(10)
	raw, err := encodeCommand(req, nil)
	require.NoError(t, err)
	_, err = sendUnit(user, pcCT, true, raw, nil)
	require.NoError(t, err)
	keys := dicom.NewDataset()
	keys.AddElement(dicom.PatientID, dicom.VR_LO, "PID-1")
	data, err := dicom.EncodeDatasetWithTransferSyntax(keys, types.ImplicitVRLittleEndian)
	require.NoError(t, err)
	_, err = sendUnit(user, pcVerification, false, data, nil)
	require.NoError(t, err)

	pcid, msg, _, err := e.ReceiveCommand(provider, Blocking, time.Second)
	require.NoError(t, err)
	_, err = e.StoreProvider(provider, pcid, msg.(*StoreRQ), StoreProviderOptions{})
	assert.ErrorIs(t, err, dimseerrors.ErrInvalidPresentationContextID)
}

func TestGuessInstanceSize(t *testing.T) {
	assert.Equal(t, int64(2*512*512), GuessInstanceSize(types.CTImageStorage))
	assert.Equal(t, int64(1<<20), GuessInstanceSize("1.2.3.4"))
}

func TestStoreUserWithoutContext(t *testing.T) {
	e := testEngine()
	user, _ := newPipe(16384, testContexts())
	rq := testStoreRQ(11)
	rq.AffectedSOPClassUID = types.MRImageStorage

	_, err := e.StoreUser(user, 0, StoreRequest{Message: rq, Dataset: testInstanceDataset(8)})
	assert.ErrorIs(t, err, dimseerrors.ErrInvalidPresentationContextID)
}
