package dimse

import "github.com/caio-sobreiro/dimsenet/types"

// SendCancelRequest asks the peer to stop the C-FIND, C-MOVE or C-GET sent
// as msgID on context pcid. Responses keep arriving until a final one.
func (e *Engine) SendCancelRequest(assoc Association, pcid byte, msgID uint16) error {
	req := &CancelRQ{
		MessageIDBeingRespondedTo: msgID,
		DataSetType:               types.DataSetTypeNull,
	}
	return e.SendMessage(assoc, pcid, req, nil, nil, nil)
}
