package dimse

import (
	"os"
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// ProgressState marks where a C-STORE transfer is.
type ProgressState int

const (
	ProgressBegin ProgressState = iota
	ProgressProgressing
	ProgressEnd
)

func (s ProgressState) String() string {
	switch s {
	case ProgressBegin:
		return "begin"
	case ProgressProgressing:
		return "progressing"
	}
	return "end"
}

// StoreProgress is reported to C-STORE callbacks. TotalBytes is the file
// size when sending a file and a per SOP class estimate otherwise.
type StoreProgress struct {
	State         ProgressState
	CallbackCount int
	ProgressBytes int64
	TotalBytes    int64
}

const defaultInstanceSize = 1 << 20

// Typical instance sizes; C-STORE carries no length so these only feed
// progress displays.
var averageInstanceSize = map[string]int64{
	types.CTImageStorage:                         2 * 512 * 512,
	types.MRImageStorage:                         2 * 256 * 256,
	types.ComputedRadiographyImageStorage:        2 * 2048 * 2048,
	types.DigitalXRayImageStorageForPresentation: 2 * 2048 * 2048,
	types.UltrasoundImageStorage:                 512 * 512,
	types.UltrasoundMultiFrameImageStorage:       512 * 512,
	types.SecondaryCaptureImageStorage:           2 * 512 * 512,
	types.XRayAngiographicImageStorage:           2 * 512 * 512,
	types.NuclearMedicineImageStorage:            2 * 64 * 64,
	types.PETImageStorage:                        2 * 512 * 512,
	types.RTImageStorage:                         4096,
	types.RTDoseStorage:                          4096,
	types.RTStructureSetStorage:                  4096,
	types.RTPlanStorage:                          4096,
	types.BasicTextSRStorage:                     4096,
	types.EnhancedSRStorage:                      4096,
}

// GuessInstanceSize estimates the encoded size of an instance of sopClassUID.
func GuessInstanceSize(sopClassUID string) int64 {
	if n, ok := averageInstanceSize[sopClassUID]; ok {
		return n
	}
	return defaultInstanceSize
}

// DetectedCancel records a C-CANCEL-RQ that arrived while a C-STORE-RQ was
// outstanding, typically the peer cancelling the C-MOVE or C-GET the store
// belongs to.
type DetectedCancel struct {
	ContextID byte
	Request   *CancelRQ
}

// StoreRequest describes one outgoing C-STORE. Exactly one of Dataset and
// File supplies the data.
type StoreRequest struct {
	Message  *StoreRQ
	Dataset  *dicom.Dataset
	File     string
	Progress func(StoreProgress)
	Mode     BlockMode
	Timeout  time.Duration
}

// StoreResult is the outcome of StoreUser.
type StoreResult struct {
	Response     *StoreRSP
	StatusDetail *dicom.Dataset
	Cancel       *DetectedCancel
}

// StoreUser sends a C-STORE-RQ with its data set and waits for the response.
// pcid 0 selects the first accepted context for the SOP class. C-CANCEL-RQs
// received while waiting are reported in the result and the wait goes on.
func (e *Engine) StoreUser(assoc Association, pcid byte, req StoreRequest) (*StoreResult, error) {
	rq := req.Message
	if rq == nil {
		return nil, dimseerrors.New(dimseerrors.BadMessage, "no C-STORE-RQ given")
	}
	if pcid == 0 {
		id, ok := FindAcceptedContext(assoc, rq.AffectedSOPClassUID, "")
		if !ok {
			return nil, dimseerrors.New(dimseerrors.InvalidPresentationContextID, "no accepted context for %s", rq.AffectedSOPClassUID)
		}
		pcid = id
	}

	progress := StoreProgress{State: ProgressBegin, TotalBytes: GuessInstanceSize(rq.AffectedSOPClassUID)}
	if req.File != "" {
		if fi, err := os.Stat(req.File); err == nil {
			progress.TotalBytes = fi.Size()
		}
	}
	report := func(state ProgressState, n int64) {
		if req.Progress == nil {
			return
		}
		progress.State = state
		progress.ProgressBytes = n
		progress.CallbackCount++
		req.Progress(progress)
	}

	report(ProgressBegin, 0)
	onPDV := func(n int64) { report(ProgressProgressing, n) }
	var err error
	if req.File != "" {
		err = e.SendMessageFile(assoc, pcid, rq, req.File, nil, onPDV)
	} else {
		err = e.SendMessage(assoc, pcid, rq, req.Dataset, nil, onPDV)
	}
	if err != nil {
		return nil, err
	}
	report(ProgressEnd, progress.ProgressBytes)

	res := &StoreResult{}
	for {
		cpcid, msg, detail, err := e.ReceiveCommand(assoc, req.Mode, req.Timeout)
		if err != nil {
			return res, err
		}
		switch m := msg.(type) {
		case *CancelRQ:
			e.logger.Debug("C-CANCEL-RQ received while waiting for C-STORE-RSP",
				"message_id", m.MessageIDBeingRespondedTo,
				"context_id", cpcid)
			res.Cancel = &DetectedCancel{ContextID: cpcid, Request: m}
		case *StoreRSP:
			res.Response, res.StatusDetail = m, detail
			if m.MessageIDBeingRespondedTo != rq.MessageID {
				return res, dimseerrors.New(dimseerrors.UnexpectedResponse,
					"C-STORE-RSP for message %d, expected %d", m.MessageIDBeingRespondedTo, rq.MessageID)
			}
			return res, nil
		default:
			return res, dimseerrors.New(dimseerrors.UnexpectedResponse, "expected C-STORE-RSP, got %s", msg.Command())
		}
	}
}

// StoreEvent is handed to a StoreProviderFunc at the start of a transfer,
// after every PDV and at the end. The callback decides the outcome by
// changing Response.Status and StatusDetail.
type StoreEvent struct {
	Progress StoreProgress
	Request  *StoreRQ
	// Path is the file sink, empty when receiving into memory.
	Path string
	// Dataset is set at the end of an in-memory transfer.
	Dataset      *dicom.Dataset
	Response     *StoreRSP
	StatusDetail *dicom.Dataset
}

// StoreProviderFunc observes and decides an incoming C-STORE.
type StoreProviderFunc func(ev *StoreEvent)

// StoreProviderOptions configure StoreProvider. An empty Path receives into
// memory.
type StoreProviderOptions struct {
	Path      string
	WriteMeta bool
	SourceAE  string
	Callback  StoreProviderFunc
	Mode      BlockMode
	Timeout   time.Duration
}

// StoreProvider receives the data set of req, runs the callback and sends
// exactly one C-STORE-RSP. When the file sink cannot be created the data set
// is discarded, the response carries 0xA700 and the OutOfResources condition
// is returned after the response went out.
func (e *Engine) StoreProvider(assoc Association, pcid byte, req *StoreRQ, opts StoreProviderOptions) (*StoreEvent, error) {
	rsp := &StoreRSP{
		MessageIDBeingRespondedTo: req.MessageID,
		AffectedSOPClassUID:       req.AffectedSOPClassUID,
		AffectedSOPInstanceUID:    req.AffectedSOPInstanceUID,
		DataSetType:               types.DataSetTypeNull,
		Status:                    StatusSuccess,
		Opts:                      OptAffectedSOPClassUID | OptAffectedSOPInstanceUID,
	}
	ev := &StoreEvent{
		Progress: StoreProgress{
			State:         ProgressBegin,
			CallbackCount: 1,
			TotalBytes:    GuessInstanceSize(req.AffectedSOPClassUID),
		},
		Request:  req,
		Path:     opts.Path,
		Response: rsp,
	}
	var progress ProgressFunc
	if opts.Callback != nil {
		opts.Callback(ev)
		progress = func(n int64) {
			ev.Progress.State = ProgressProgressing
			ev.Progress.ProgressBytes = n
			ev.Progress.CallbackCount++
			opts.Callback(ev)
		}
	}

	var (
		dataPCID byte
		err      error
	)
	if opts.Path != "" {
		var meta *dicom.Dataset
		if opts.WriteMeta {
			pc, _ := FindContext(assoc, pcid)
			meta = dicom.NewFileMeta(req.AffectedSOPClassUID, req.AffectedSOPInstanceUID, pc.TransferSyntax, opts.SourceAE)
		}
		dataPCID, _, err = e.ReceiveDataSetToFile(assoc, opts.Mode, opts.Timeout, opts.Path, meta, progress)
		if dimseerrors.KindOf(err) == dimseerrors.OutOfResources {
			dataPCID = pcid
		}
	} else {
		dataPCID, ev.Dataset, err = e.ReceiveDataSet(assoc, opts.Mode, opts.Timeout, progress)
	}
	if err == nil && dataPCID != pcid {
		err = dimseerrors.New(dimseerrors.InvalidPresentationContextID,
			"command on context %d, data set on context %d", pcid, dataPCID)
	}

	var resourceErr error
	switch {
	case err == nil:
		rsp.Status = StatusSuccess
	case dimseerrors.KindOf(err) == dimseerrors.OutOfResources:
		e.logger.Warn("Discarded C-STORE data set", "error", err)
		rsp.Status = StatusOutOfResources
		resourceErr = err
	default:
		return ev, err
	}

	if opts.Callback != nil {
		ev.Progress.State = ProgressEnd
		ev.Progress.CallbackCount++
		opts.Callback(ev)
	}
	if err := e.SendStoreResponse(assoc, pcid, req, rsp, ev.StatusDetail); err != nil {
		return ev, err
	}
	return ev, resourceErr
}

// SendStoreResponse sends rsp as the answer to req. The identifying fields
// are copied from the request.
func (e *Engine) SendStoreResponse(assoc Association, pcid byte, req *StoreRQ, rsp *StoreRSP, statusDetail *dicom.Dataset) error {
	rsp.MessageIDBeingRespondedTo = req.MessageID
	rsp.AffectedSOPClassUID = req.AffectedSOPClassUID
	rsp.AffectedSOPInstanceUID = req.AffectedSOPInstanceUID
	rsp.Opts = OptAffectedSOPClassUID | OptAffectedSOPInstanceUID
	rsp.DataSetType = types.DataSetTypeNull
	return e.SendMessage(assoc, pcid, rsp, nil, statusDetail, nil)
}
