package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/pdu"
	"github.com/caio-sobreiro/dimsenet/types"
)

func listenSubs(t *testing.T) *client.SubAssociationListener {
	t.Helper()
	subs, err := client.ListenSubAssociations("127.0.0.1:0", client.SubAssociationConfig{
		AETitle:     "TEST_SCU",
		ReadTimeout: testTimeout,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { subs.Close() })
	return subs
}

// openSub plays the C-MOVE SCP: it dials subs with one CT storage context
// while the listener accepts.
func openSub(t *testing.T, subs *client.SubAssociationListener) (*pdu.Conn, dimse.Association) {
	t.Helper()
	dialed := make(chan *pdu.Conn, 1)
	go func() {
		conn, err := pdu.Dial(context.Background(), subs.Addr().String(), pdu.AssociateRQ{
			CalledAETitle:  "TEST_SCU",
			CallingAETitle: "TEST_SCP",
			Contexts: []pdu.ProposedContext{{
				ID:               1,
				AbstractSyntax:   types.CTImageStorage,
				TransferSyntaxes: []string{types.ImplicitVRLittleEndian},
			}},
		}, pdu.Config{ReadTimeout: testTimeout, Logger: quietLogger()})
		if err != nil {
			t.Error(err)
		}
		dialed <- conn
	}()

	sub, err := subs.HandleSubOperation(subs.Listener(), nil)
	require.NoError(t, err)
	require.NotNil(t, sub)
	peer := <-dialed
	require.NotNil(t, peer)
	return peer, sub
}

func storeCommand(t *testing.T) []byte {
	t.Helper()
	cmd, err := dimse.BuildCommand(&dimse.StoreRQ{
		MessageID:              1,
		AffectedSOPClassUID:    types.CTImageStorage,
		AffectedSOPInstanceUID: "1.2.3.300",
		DataSetType:            types.DataSetTypePresent,
	})
	require.NoError(t, err)
	raw, err := dicom.EncodeDatasetWithTransferSyntax(cmd, types.ImplicitVRLittleEndian)
	require.NoError(t, err)
	return raw
}

func TestSubAssociationAbortsOnFailedStore(t *testing.T) {
	subs := listenSubs(t)
	peer, sub := openSub(t, subs)
	defer peer.Close()

	raw := storeCommand(t)
	require.NoError(t, peer.WritePDV(dimse.PDV{ContextID: 1, Data: raw, Command: true, Last: true}))
	// a second command where the data set belongs
	require.NoError(t, peer.WritePDV(dimse.PDV{ContextID: 1, Data: raw, Command: true, Last: true}))

	next, err := subs.HandleSubOperation(nil, sub)
	assert.Nil(t, next)
	assert.ErrorIs(t, err, dimseerrors.ErrUnexpectedPDVType)
	assert.Zero(t, subs.Received)

	_, err = peer.ReadPDV(dimse.Blocking, testTimeout)
	assert.Equal(t, dimseerrors.PeerAbortedAssociation, dimseerrors.KindOf(err))
}

func TestAbortSubOperation(t *testing.T) {
	subs := listenSubs(t)
	peer, sub := openSub(t, subs)
	defer peer.Close()

	subs.AbortSubOperation(sub)

	_, err := peer.ReadPDV(dimse.Blocking, testTimeout)
	assert.Equal(t, dimseerrors.PeerAbortedAssociation, dimseerrors.KindOf(err))
}
