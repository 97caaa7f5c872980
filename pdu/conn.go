package pdu

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Config holds the settings shared by both ends of an association.
type Config struct {
	// AETitle is the local application entity title.
	AETitle string
	// MaxPDULength is the largest PDU we accept (default 16384).
	MaxPDULength uint32
	// ReadTimeout bounds association negotiation, release and reading the
	// rest of a PDU once its first byte arrived. Zero means no bound.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Policy decides accepted contexts on the acceptor side
	// (default DefaultAcceptPolicy).
	Policy AcceptPolicy
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxPDULength == 0 {
		c.MaxPDULength = DefaultMaxPDULength
	}
	if c.Policy == nil {
		c.Policy = DefaultAcceptPolicy
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// pollSlice is how long a non-blocking read looks at the socket.
const pollSlice = time.Millisecond

// unboundedPDV is the PDV size used when the peer sets no maximum length.
const unboundedPDV = 1 << 20

// Conn is an established association over a network connection. It is
// driven by one goroutine at a time.
type Conn struct {
	conn     net.Conn
	br       *bufio.Reader
	cfg      Config
	logger   *slog.Logger
	localAE  string
	remoteAE string
	contexts []types.PresentationContext
	peerMax  uint32
	pending  []dimse.PDV
	msgID    uint16
	closed   bool
}

var _ dimse.Association = (*Conn)(nil)

func newConn(conn net.Conn, br *bufio.Reader, cfg Config, remoteAE string, contexts []types.PresentationContext, peerMax uint32) *Conn {
	return &Conn{
		conn:     conn,
		br:       br,
		cfg:      cfg,
		logger:   cfg.Logger.With("remote_ae", remoteAE, "remote_addr", conn.RemoteAddr().String()),
		localAE:  cfg.AETitle,
		remoteAE: remoteAE,
		contexts: contexts,
		peerMax:  peerMax,
	}
}

// PresentationContexts returns the negotiated contexts, rejected ones
// included.
func (c *Conn) PresentationContexts() []types.PresentationContext { return c.contexts }
func (c *Conn) LocalAETitle() string                              { return c.localAE }
func (c *Conn) RemoteAETitle() string                             { return c.remoteAE }
func (c *Conn) RemoteAddr() net.Addr                              { return c.conn.RemoteAddr() }

// MaxPDVSize is the peer's maximum PDU length less the PDV item header.
func (c *Conn) MaxPDVSize() int {
	if c.peerMax == 0 {
		return unboundedPDV
	}
	return int(c.peerMax) - 6
}

func (c *Conn) NextMessageID() uint16 {
	c.msgID++
	if c.msgID == 0 {
		c.msgID = 1
	}
	return c.msgID
}

func (c *Conn) write(p *PDU) error {
	if c.closed {
		return dimseerrors.ErrConnectionClosed
	}
	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return dimseerrors.NewNetworkError("write", err)
		}
	}
	if _, err := c.conn.Write(p.Bytes()); err != nil {
		return dimseerrors.NewNetworkError("write", err)
	}
	return nil
}

// WritePDV sends pdv in its own P-DATA-TF PDU.
func (c *Conn) WritePDV(pdv dimse.PDV) error {
	if err := c.write(EncodePDataTF(pdv)); err != nil {
		return dimseerrors.Wrap(dimseerrors.SendFailed, err, "P-DATA-TF on context %d", pdv.ContextID)
	}
	return nil
}

// await waits until the first byte of a PDU is buffered.
func (c *Conn) await(mode dimse.BlockMode, timeout time.Duration) error {
	if c.closed {
		return dimseerrors.Wrap(dimseerrors.ReadPDVFailed, dimseerrors.ErrConnectionClosed, "read")
	}
	if c.br.Buffered() > 0 {
		return nil
	}
	var deadline time.Time
	switch {
	case mode == dimse.NonBlocking:
		deadline = time.Now().Add(pollSlice)
	case timeout > 0:
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return dimseerrors.Wrap(dimseerrors.ReadPDVFailed, dimseerrors.NewNetworkError("read", err), "set deadline")
	}
	_, err := c.br.Peek(1)
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return dimseerrors.New(dimseerrors.NoDataAvailable, "no PDU within %s", timeout)
	}
	c.close()
	return dimseerrors.Wrap(dimseerrors.ReadPDVFailed, dimseerrors.NewNetworkError("read", err), "peer connection lost")
}

// readPDU reads the PDU whose first byte is buffered.
func (c *Conn) readPDU() (*PDU, error) {
	var deadline time.Time
	if c.cfg.ReadTimeout > 0 {
		deadline = time.Now().Add(c.cfg.ReadTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	return ReadPDU(c.br)
}

// ReadPDV returns the next PDV. A-RELEASE-RQ and A-ABORT end the read with
// PeerRequestedRelease and PeerAbortedAssociation.
func (c *Conn) ReadPDV(mode dimse.BlockMode, timeout time.Duration) (dimse.PDV, error) {
	if len(c.pending) > 0 {
		pdv := c.pending[0]
		c.pending = c.pending[1:]
		return pdv, nil
	}
	if err := c.await(mode, timeout); err != nil {
		return dimse.PDV{}, err
	}
	p, err := c.readPDU()
	if err != nil {
		c.close()
		return dimse.PDV{}, dimseerrors.Wrap(dimseerrors.ReadPDVFailed, dimseerrors.NewNetworkError("read", err), "read PDU")
	}
	c.logger.Debug("Received PDU", "type", fmt.Sprintf("0x%02x", p.Type), "length", p.Length)

	switch p.Type {
	case TypePDataTF:
		pdvs, err := DecodePDataTF(p.Data)
		if err != nil {
			_ = c.Abort(AbortSourceServiceProvider, AbortReasonInvalidPDUItem)
			return dimse.PDV{}, dimseerrors.Wrap(dimseerrors.ReadPDVFailed, err, "malformed P-DATA-TF")
		}
		c.pending = pdvs[1:]
		return pdvs[0], nil
	case TypeReleaseRQ:
		c.logger.Debug("Received A-RELEASE-RQ")
		return dimse.PDV{}, dimseerrors.New(dimseerrors.PeerRequestedRelease, "peer requested release")
	case TypeAbort:
		abort := decodeAbort(p.Data)
		c.logger.Info("Received A-ABORT", "source", abort.Source, "reason", abort.Reason)
		c.close()
		return dimse.PDV{}, dimseerrors.Wrap(dimseerrors.PeerAbortedAssociation, abort, "peer aborted")
	}
	_ = c.Abort(AbortSourceServiceProvider, AbortReasonUnexpectedPDU)
	return dimse.PDV{}, dimseerrors.Wrap(dimseerrors.ReadPDVFailed,
		dimseerrors.NewPDUError(p.Type, "unexpected PDU during data transfer"), "read PDU")
}

// DataWaiting reports whether ReadPDV would return within timeout: a PDU
// or buffered PDV is there, or the connection has failed. A zero timeout
// only checks.
func (c *Conn) DataWaiting(timeout time.Duration) bool {
	if len(c.pending) > 0 {
		return true
	}
	mode := dimse.Blocking
	if timeout <= 0 {
		mode = dimse.NonBlocking
	}
	err := c.await(mode, timeout)
	return err == nil || !errors.Is(err, dimseerrors.ErrNoDataAvailable)
}

// Release sends A-RELEASE-RQ and waits for the reply, then closes the
// connection.
func (c *Conn) Release() error {
	if c.closed {
		return dimseerrors.ErrConnectionClosed
	}
	defer c.close()
	if err := c.write(encodeRelease(TypeReleaseRQ)); err != nil {
		return fmt.Errorf("failed to send A-RELEASE-RQ: %w", err)
	}
	for {
		p, err := c.readPDU()
		if err != nil {
			return fmt.Errorf("failed to receive A-RELEASE-RP: %w", dimseerrors.NewNetworkError("read", err))
		}
		switch p.Type {
		case TypeReleaseRP:
			c.logger.Debug("Association released")
			return nil
		case TypeReleaseRQ:
			// Release collision: answer and keep waiting for our reply.
			if err := c.write(encodeRelease(TypeReleaseRP)); err != nil {
				return err
			}
		case TypeAbort:
			return decodeAbort(p.Data)
		default:
			c.logger.Warn("Discarding PDU while releasing", "type", fmt.Sprintf("0x%02x", p.Type))
		}
	}
}

// AcknowledgeRelease answers a peer's A-RELEASE-RQ and closes the
// connection.
func (c *Conn) AcknowledgeRelease() error {
	if c.closed {
		return dimseerrors.ErrConnectionClosed
	}
	defer c.close()
	if err := c.write(encodeRelease(TypeReleaseRP)); err != nil {
		return fmt.Errorf("failed to send A-RELEASE-RP: %w", err)
	}
	c.logger.Debug("Sent A-RELEASE-RP")
	return nil
}

// Abort sends A-ABORT and closes the connection.
func (c *Conn) Abort(source, reason byte) error {
	if c.closed {
		return nil
	}
	defer c.close()
	c.logger.Info("Aborting association", "source", source, "reason", reason)
	return c.write(encodeAbort(source, reason))
}

// Close drops the connection without any PDU exchange.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Conn) close() {
	_ = c.Close()
}
