package services

import (
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
)

// respondUnsupported answers a request no handler is registered for.
// C-CANCEL-RQ gets no response.
func respondUnsupported(req *interfaces.Request) error {
	e, conn, pcid := req.Engine, req.Conn, req.ContextID
	if dimse.IsDataSetPresent(req.Message) {
		if _, _, err := e.IgnoreDataSet(conn, dimse.Blocking, req.Timeout); err != nil {
			return err
		}
	}

	detail := ErrorComment("unsupported operation")
	switch m := req.Message.(type) {
	case *dimse.EchoRQ:
		return e.SendEchoResponse(conn, pcid, m, dimse.StatusUnableToProcess, detail)
	case *dimse.StoreRQ:
		return e.SendStoreResponse(conn, pcid, m, &dimse.StoreRSP{Status: dimse.StatusUnableToProcess}, detail)
	case *dimse.FindRQ:
		return e.SendFindResponse(conn, pcid, m, &dimse.FindRSP{Status: dimse.StatusUnableToProcess}, nil, detail)
	case *dimse.MoveRQ:
		return e.SendMoveResponse(conn, pcid, m, &dimse.MoveRSP{Status: dimse.StatusUnableToProcess}, nil, detail)
	case *dimse.GetRQ:
		return e.SendGetResponse(conn, pcid, m, &dimse.GetRSP{Status: dimse.StatusUnableToProcess}, nil, detail)
	case *dimse.CancelRQ:
		return nil
	case dimse.Request:
		rsp, err := dimse.NewNResponse(m, dimse.StatusNUnrecognizedOperation)
		if err != nil {
			return err
		}
		return e.SendNResponse(conn, pcid, rsp, nil, nil)
	}
	return dimseerrors.New(dimseerrors.UnexpectedRequest, "%s received where a request was expected", req.Message.Command())
}

// ErrorComment builds a status detail carrying an Error Comment.
func ErrorComment(comment string) *dicom.Dataset {
	ds := dicom.NewDataset()
	ds.AddElement(dicom.ErrorComment, dicom.VR_LO, comment)
	return ds
}

// FailedInstances builds the identifier of a final C-MOVE or C-GET response
// that lists the instances whose sub-operation failed. It returns nil when
// nothing failed.
func FailedInstances(uids []string) *dicom.Dataset {
	if len(uids) == 0 {
		return nil
	}
	ds := dicom.NewDataset()
	ds.AddElement(dicom.FailedSOPInstanceUIDList, dicom.VR_UI, append([]string(nil), uids...))
	return ds
}

// retrieveStatus is the final status of a retrieve that ran every
// sub-operation.
func retrieveStatus(counts dimse.SubOperations) uint16 {
	if counts.Failed > 0 && counts.Completed == 0 && counts.Warning == 0 {
		return dimse.StatusOutOfResourcesSubOps
	}
	if counts.Failed > 0 || counts.Warning > 0 {
		return dimse.StatusSubOpsCompleteWithErrors
	}
	return dimse.StatusSuccess
}
