package dimse

import (
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// EchoUser sends a C-ECHO-RQ with msgID on the Verification context and
// waits for the matching response.
func (e *Engine) EchoUser(assoc Association, msgID uint16, mode BlockMode, timeout time.Duration) (*EchoRSP, *dicom.Dataset, error) {
	pcid, ok := FindAcceptedContext(assoc, types.VerificationSOPClass, "")
	if !ok {
		return nil, nil, dimseerrors.New(dimseerrors.InvalidPresentationContextID, "no accepted Verification context")
	}
	req := &EchoRQ{
		MessageID:           msgID,
		AffectedSOPClassUID: types.VerificationSOPClass,
		DataSetType:         types.DataSetTypeNull,
	}
	if err := e.SendMessage(assoc, pcid, req, nil, nil, nil); err != nil {
		return nil, nil, err
	}

	_, msg, detail, err := e.ReceiveCommand(assoc, mode, timeout)
	if err != nil {
		return nil, nil, err
	}
	rsp, ok := msg.(*EchoRSP)
	if !ok {
		return nil, detail, dimseerrors.New(dimseerrors.UnexpectedResponse, "expected C-ECHO-RSP, got %s", msg.Command())
	}
	if rsp.MessageIDBeingRespondedTo != msgID {
		return rsp, detail, dimseerrors.New(dimseerrors.UnexpectedResponse,
			"C-ECHO-RSP for message %d, expected %d", rsp.MessageIDBeingRespondedTo, msgID)
	}
	return rsp, detail, nil
}

// SendEchoResponse answers req with status.
func (e *Engine) SendEchoResponse(assoc Association, pcid byte, req *EchoRQ, status uint16, statusDetail *dicom.Dataset) error {
	rsp := &EchoRSP{
		MessageIDBeingRespondedTo: req.MessageID,
		AffectedSOPClassUID:       req.AffectedSOPClassUID,
		DataSetType:               types.DataSetTypeNull,
		Status:                    status,
		Opts:                      OptAffectedSOPClassUID,
	}
	return e.SendMessage(assoc, pcid, rsp, nil, statusDetail, nil)
}
