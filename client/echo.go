package client

import (
	"github.com/caio-sobreiro/dimsenet/dimse"
)

// CEchoResponse represents the result of a C-ECHO operation.
type CEchoResponse struct {
	Status    uint16
	MessageID uint16
}

// SendCEcho performs a DICOM C-ECHO (verification) request and returns the response status.
// A zero messageID takes the next id of the association.
func (a *Association) SendCEcho(messageID uint16) (*CEchoResponse, error) {
	messageID = a.messageID(messageID)

	rsp, _, err := a.engine.EchoUser(a.conn, messageID, dimse.Blocking, a.timeout)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("C-ECHO completed", "status", dimse.StatusString(dimse.ServiceEcho, rsp.Status))

	return &CEchoResponse{
		Status:    rsp.Status,
		MessageID: rsp.MessageIDBeingRespondedTo,
	}, statusError(dimse.ServiceEcho, rsp.Status)
}
