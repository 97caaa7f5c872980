package dimse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
)

func TestWaitReadyOrder(t *testing.T) {
	queue := func(p *pipeAssoc) {
		require.NoError(t, p.WritePDV(PDV{ContextID: 1, Command: true, Last: true, Data: []byte{0, 0}}))
	}

	tests := []struct {
		name     string
		main     bool
		listener bool
		sub      bool
		want     Source
	}{
		{"main only", true, false, false, SourceMain},
		{"listener before main", true, true, false, SourceListener},
		{"sub before everything", true, true, true, SourceSubAssociation},
		{"sub without main", false, false, true, SourceSubAssociation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine()
			peer, main := newPipe(16384, testContexts())
			subPeer, sub := newPipe(16384, testContexts())
			l := &fakeListener{}
			l.ready.Store(tt.listener)
			if tt.main {
				queue(peer)
			}
			if tt.sub {
				queue(subPeer)
			}

			got, err := e.WaitReady(main, l, sub, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWaitReadyNilSources(t *testing.T) {
	e := testEngine()
	peer, main := newPipe(16384, testContexts())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = peer.WritePDV(PDV{ContextID: 1, Command: true, Last: true, Data: []byte{0, 0}})
	}()
	got, err := e.WaitReady(main, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, SourceMain, got)
}

func TestWaitReadyTimeout(t *testing.T) {
	e := testEngine()
	_, main := newPipe(16384, testContexts())

	start := time.Now()
	got, err := e.WaitReady(main, &fakeListener{}, nil, 30*time.Millisecond)
	assert.Equal(t, SourceNone, got)
	assert.ErrorIs(t, err, dimseerrors.ErrNoDataAvailable)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitReadyClosedMain(t *testing.T) {
	e := testEngine()
	peer, main := newPipe(16384, testContexts())
	peer.close()

	got, err := e.WaitReady(main, nil, nil, 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, SourceMain, got)

	_, _, _, err = e.ReceiveCommand(main, Blocking, 0)
	assert.ErrorIs(t, err, dimseerrors.ErrPeerAbortedAssociation)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "main", SourceMain.String())
	assert.Equal(t, "listener", SourceListener.String())
	assert.Equal(t, "sub-association", SourceSubAssociation.String())
	assert.Equal(t, "none", SourceNone.String())
}
