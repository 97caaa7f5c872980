package dimse

import (
	"bufio"
	"bytes"
	"os"
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// ProgressFunc is called after every PDV of a data unit with the running
// byte count.
type ProgressFunc func(bytes int64)

func (e *Engine) sendContext(assoc Association, pcid byte, msg Message) (types.PresentationContext, error) {
	if err := Validate(msg); err != nil {
		return types.PresentationContext{}, err
	}
	pc, ok := FindContext(assoc, pcid)
	if !ok || !pc.Accepted() {
		return pc, dimseerrors.New(dimseerrors.InvalidPresentationContextID, "no accepted presentation context %d", pcid)
	}
	if !types.IsSupportedTransferSyntax(pc.TransferSyntax) {
		return pc, dimseerrors.New(dimseerrors.UnsupportedTransferSyntax, "%s on context %d", pc.TransferSyntax, pcid)
	}
	return pc, nil
}

func encodeCommand(msg Message, statusDetail *dicom.Dataset) ([]byte, error) {
	cmd, err := BuildCommand(msg)
	if err != nil {
		return nil, err
	}
	if statusDetail != nil {
		cmd = dicom.Merge(statusDetail, cmd)
	}
	raw, err := dicom.EncodeDatasetWithTransferSyntax(cmd, types.ImplicitVRLittleEndian)
	if err != nil {
		return nil, dimseerrors.Wrap(dimseerrors.BuildFailed, err, "encoding %s", msg.Command())
	}
	return raw, nil
}

func (e *Engine) encodeData(ds *dicom.Dataset, transferSyntax string) ([]byte, error) {
	if !ds.CanWrite(transferSyntax) {
		return nil, dimseerrors.Wrap(dimseerrors.SendFailed, dicom.ErrNotRepresentable,
			"data set cannot be sent as %s", types.TransferSyntaxName(transferSyntax))
	}
	var buf bytes.Buffer
	if err := dicom.Write(&buf, ds, transferSyntax, e.cfg.DataEncoding); err != nil {
		return nil, dimseerrors.Wrap(dimseerrors.SendFailed, err, "encoding data set")
	}
	// deflated streams are padded to an even length
	if buf.Len()%2 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func (e *Engine) send(assoc Association, pcid byte, msg Message, statusDetail *dicom.Dataset, payload []byte, progress ProgressFunc) error {
	raw, err := encodeCommand(msg, statusDetail)
	if err != nil {
		return err
	}
	n, err := sendUnit(assoc, pcid, true, raw, nil)
	if err != nil {
		return err
	}
	e.traceCommand(Sent, pcid, msg, raw)
	e.logger.Debug("Sent DIMSE command",
		"command", msg.Command().String(),
		"context_id", pcid,
		"bytes", len(raw),
		"pdvs", n)

	if !IsDataSetPresent(msg) {
		return nil
	}
	var onPDV func(int64)
	if progress != nil {
		onPDV = func(total int64) { progress(total) }
	}
	n, err = sendUnit(assoc, pcid, false, payload, onPDV)
	if err != nil {
		return err
	}
	e.traceData(Sent, pcid, int64(len(payload)), payload)
	e.logger.Debug("Sent DIMSE data set",
		"context_id", pcid,
		"bytes", len(payload),
		"pdvs", n)
	return nil
}

// SendMessage sends msg on context pcid followed by data when the message
// announces a data set. statusDetail elements are merged into the command
// set; msg's own fields take precedence.
func (e *Engine) SendMessage(assoc Association, pcid byte, msg Message, data, statusDetail *dicom.Dataset, progress ProgressFunc) error {
	pc, err := e.sendContext(assoc, pcid, msg)
	if err != nil {
		return err
	}
	var payload []byte
	if IsDataSetPresent(msg) {
		if data == nil {
			return dimseerrors.New(dimseerrors.SendFailed, "%s announces a data set but none was given", msg.Command())
		}
		if payload, err = e.encodeData(data, pc.TransferSyntax); err != nil {
			return err
		}
	}
	return e.send(assoc, pcid, msg, statusDetail, payload, progress)
}

// SendMessageFile is SendMessage with the data set taken from a Part 10 or
// raw data set file. The file bytes are sent unchanged when their transfer
// syntax matches the context; otherwise the data set is re-encoded.
func (e *Engine) SendMessageFile(assoc Association, pcid byte, msg Message, path string, statusDetail *dicom.Dataset, progress ProgressFunc) error {
	pc, err := e.sendContext(assoc, pcid, msg)
	if err != nil {
		return err
	}
	var payload []byte
	if IsDataSetPresent(msg) {
		if payload, err = e.fileDataUnit(path, pc.TransferSyntax); err != nil {
			return err
		}
	}
	return e.send(assoc, pcid, msg, statusDetail, payload, progress)
}

func (e *Engine) fileDataUnit(path, transferSyntax string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dimseerrors.NewOutOfResources(path, err)
	}
	body, fileSyntax := raw, types.ImplicitVRLittleEndian
	if dicom.HasPart10Header(raw) {
		if body, fileSyntax, err = dicom.StripPart10Header(raw); err != nil {
			return nil, dimseerrors.Wrap(dimseerrors.SendFailed, err, "reading %s", path)
		}
	}
	if fileSyntax == transferSyntax {
		return body, nil
	}
	ds, err := dicom.ParseDatasetWithTransferSyntax(body, fileSyntax)
	if err != nil {
		return nil, dimseerrors.Wrap(dimseerrors.SendFailed, err, "decoding %s", path)
	}
	e.logger.Debug("Re-encoding file data set",
		"path", path,
		"from", types.TransferSyntaxName(fileSyntax),
		"to", types.TransferSyntaxName(transferSyntax))
	return e.encodeData(ds, transferSyntax)
}

// ReceiveCommand reads exactly one command unit.
func (e *Engine) ReceiveCommand(assoc Association, mode BlockMode, timeout time.Duration) (byte, Message, *dicom.Dataset, error) {
	var buf bytes.Buffer
	info, err := readUnit(assoc, mode, timeout, true, func(b []byte) error {
		buf.Write(b)
		return nil
	})
	if err != nil {
		return info.contextID, nil, nil, err
	}
	if pc, ok := FindContext(assoc, info.contextID); !ok || !pc.Accepted() {
		return info.contextID, nil, nil, dimseerrors.New(dimseerrors.InvalidPresentationContextID,
			"command received on unknown context %d", info.contextID)
	}
	ds, err := dicom.ParseDatasetWithTransferSyntax(buf.Bytes(), types.ImplicitVRLittleEndian)
	if err != nil {
		return info.contextID, nil, nil, dimseerrors.Wrap(dimseerrors.ParseFailed, err, "decoding command set")
	}
	msg, detail, err := ParseCommand(ds)
	if err != nil {
		return info.contextID, nil, nil, err
	}
	e.traceCommand(Received, info.contextID, msg, buf.Bytes())
	e.logger.Debug("Received DIMSE command",
		"command", msg.Command().String(),
		"context_id", info.contextID,
		"bytes", info.bytes,
		"pdvs", info.pdvs)
	return info.contextID, msg, detail, nil
}

func (e *Engine) dataSyntax(assoc Association, pcid byte) (string, error) {
	pc, ok := FindContext(assoc, pcid)
	if !ok || !pc.Accepted() {
		return "", dimseerrors.New(dimseerrors.InvalidPresentationContextID, "data received on unknown context %d", pcid)
	}
	return pc.TransferSyntax, nil
}

// ReceiveDataSet reads one data unit and decodes it under the transfer
// syntax of the context it arrived on.
func (e *Engine) ReceiveDataSet(assoc Association, mode BlockMode, timeout time.Duration, progress ProgressFunc) (byte, *dicom.Dataset, error) {
	var buf bytes.Buffer
	info, err := readUnit(assoc, mode, timeout, false, func(b []byte) error {
		buf.Write(b)
		if progress != nil {
			progress(int64(buf.Len()))
		}
		return nil
	})
	if err != nil {
		return info.contextID, nil, err
	}
	ts, err := e.dataSyntax(assoc, info.contextID)
	if err != nil {
		return info.contextID, nil, err
	}
	ds, err := dicom.ParseDatasetWithTransferSyntax(buf.Bytes(), ts)
	if err != nil {
		return info.contextID, nil, dimseerrors.Wrap(dimseerrors.ReceiveFailed, err, "decoding data set")
	}
	e.traceData(Received, info.contextID, info.bytes, buf.Bytes())
	e.logger.Debug("Received DIMSE data set",
		"context_id", info.contextID,
		"bytes", info.bytes,
		"pdvs", info.pdvs)
	return info.contextID, ds, nil
}

// ReceiveDataSetToFile streams one data unit into path exactly as received.
// When meta is not nil the file starts with a Part 10 header built from it.
// If the file cannot be created the unit is discarded and an OutOfResources
// condition naming path is returned. A partial file is removed on failure.
func (e *Engine) ReceiveDataSetToFile(assoc Association, mode BlockMode, timeout time.Duration, path string, meta *dicom.Dataset, progress ProgressFunc) (byte, int64, error) {
	f, err := os.Create(path)
	if err != nil {
		if _, _, ierr := e.IgnoreDataSet(assoc, mode, timeout); ierr != nil {
			return 0, 0, ierr
		}
		return 0, 0, dimseerrors.NewOutOfResources(path, err)
	}
	w := bufio.NewWriter(f)
	if meta != nil {
		if err := dicom.WriteFileHeader(w, meta); err != nil {
			f.Close()
			os.Remove(path)
			if _, _, ierr := e.IgnoreDataSet(assoc, mode, timeout); ierr != nil {
				return 0, 0, ierr
			}
			return 0, 0, dimseerrors.NewOutOfResources(path, err)
		}
	}

	var written int64
	info, err := readUnit(assoc, mode, timeout, false, func(b []byte) error {
		if _, err := w.Write(b); err != nil {
			return dimseerrors.NewOutOfResources(path, err)
		}
		written += int64(len(b))
		if progress != nil {
			progress(written)
		}
		return nil
	})
	if err == nil {
		if ferr := w.Flush(); ferr != nil {
			err = dimseerrors.NewOutOfResources(path, ferr)
		}
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = dimseerrors.NewOutOfResources(path, cerr)
	}
	if err != nil {
		os.Remove(path)
		return info.contextID, info.bytes, err
	}
	e.traceData(Received, info.contextID, info.bytes, nil)
	e.logger.Debug("Received DIMSE data set into file",
		"context_id", info.contextID,
		"path", path,
		"bytes", info.bytes,
		"pdvs", info.pdvs)
	return info.contextID, info.bytes, nil
}

// IgnoreDataSet reads and discards one data unit, returning its size and PDV
// count.
func (e *Engine) IgnoreDataSet(assoc Association, mode BlockMode, timeout time.Duration) (int64, int, error) {
	info, err := readUnit(assoc, mode, timeout, false, nil)
	if err != nil {
		return info.bytes, info.pdvs, err
	}
	e.logger.Debug("Discarded DIMSE data set",
		"context_id", info.contextID,
		"bytes", info.bytes,
		"pdvs", info.pdvs)
	return info.bytes, info.pdvs, nil
}

// CheckForCancelRQ polls for a C-CANCEL-RQ addressed to msgID on pcid. It
// returns nil when one arrived and NoDataAvailable when nothing did. Any
// other command is an UnexpectedRequest.
func (e *Engine) CheckForCancelRQ(assoc Association, pcid byte, msgID uint16) error {
	mode, timeout := NonBlocking, time.Duration(0)
	if e.cfg.CancelPollTimeout > 0 {
		mode, timeout = Blocking, e.cfg.CancelPollTimeout
	}
	cpcid, msg, _, err := e.ReceiveCommand(assoc, mode, timeout)
	if err != nil {
		return err
	}
	cancel, ok := msg.(*CancelRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "expected C-CANCEL-RQ, got %s", msg.Command())
	}
	if cancel.MessageIDBeingRespondedTo != msgID || cpcid != pcid {
		return dimseerrors.New(dimseerrors.UnexpectedRequest,
			"C-CANCEL-RQ for message %d on context %d, expected %d on %d",
			cancel.MessageIDBeingRespondedTo, cpcid, msgID, pcid)
	}
	e.logger.Debug("Received C-CANCEL-RQ", "message_id", msgID, "context_id", pcid)
	return nil
}
