package client

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/pdu"
)

// StoreSink decides where C-STORE sub-operations received by a C-MOVE or
// C-GET user end up.
type StoreSink struct {
	// Directory receives one Part 10 file per instance, named by SOP
	// instance UID. Empty keeps instances in memory and hands them to
	// OnStore only.
	Directory string
	// OnStore observes every transfer; see dimse.StoreEvent.
	OnStore dimse.StoreProviderFunc
}

// storeHandler serves incoming C-STORE-RQs with the engine's provider.
type storeHandler struct {
	engine  *dimse.Engine
	sink    StoreSink
	localAE string
	timeout time.Duration
	logger  *slog.Logger
}

func (h *storeHandler) serve(assoc dimse.Association, pcid byte, req *dimse.StoreRQ) error {
	opts := dimse.StoreProviderOptions{
		SourceAE: h.localAE,
		Callback: h.sink.OnStore,
		Mode:     dimse.Blocking,
		Timeout:  h.timeout,
	}
	if h.sink.Directory != "" {
		opts.Path = filepath.Join(h.sink.Directory, filepath.Base(req.AffectedSOPInstanceUID)+".dcm")
		opts.WriteMeta = true
	}
	ev, err := h.engine.StoreProvider(assoc, pcid, req, opts)
	if err != nil {
		return err
	}
	h.logger.Debug("Stored sub-operation instance",
		"sop_instance", req.AffectedSOPInstanceUID,
		"path", ev.Path,
		"status", fmt.Sprintf("0x%04X", ev.Response.Status))
	return nil
}

// SubAssociationListener accepts the associations a C-MOVE SCP opens towards
// us and services the C-ECHO and C-STORE requests arriving on them. Only
// verification and storage contexts are accepted.
type SubAssociationListener struct {
	listener *pdu.Listener
	store    storeHandler
	logger   *slog.Logger
	// Received counts the instances stored successfully.
	Received int
}

var _ dimse.SubOpHandler = (*SubAssociationListener)(nil)

// SubAssociationConfig configures ListenSubAssociations.
type SubAssociationConfig struct {
	AETitle      string
	MaxPDULength uint32
	ReadTimeout  time.Duration
	Sink         StoreSink
	Engine       *dimse.Engine
	Logger       *slog.Logger
}

// ListenSubAssociations opens a listener for C-MOVE sub-associations.
func ListenSubAssociations(address string, cfg SubAssociationConfig) (*SubAssociationListener, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = dimse.New(dimse.Config{Logger: cfg.Logger})
	}
	if cfg.Sink.Directory != "" {
		if err := os.MkdirAll(cfg.Sink.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	ln, err := pdu.Listen(address, pdu.Config{
		AETitle:      cfg.AETitle,
		MaxPDULength: cfg.MaxPDULength,
		ReadTimeout:  cfg.ReadTimeout,
		Policy:       pdu.SubOperationPolicy,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	l := &SubAssociationListener{
		listener: ln,
		logger:   cfg.Logger.With("component", "sub-association"),
	}
	l.store = storeHandler{
		engine:  cfg.Engine,
		sink:    cfg.Sink,
		localAE: cfg.AETitle,
		timeout: cfg.ReadTimeout,
		logger:  l.logger,
	}
	return l, nil
}

// Addr returns the listening address.
func (l *SubAssociationListener) Addr() net.Addr { return l.listener.Addr() }

// Listener returns the endpoint WaitReady polls.
func (l *SubAssociationListener) Listener() dimse.Listener { return l.listener }

// Close stops listening.
func (l *SubAssociationListener) Close() error { return l.listener.Close() }

// HandleSubOperation accepts a new sub-association when sub is nil, and
// otherwise services one request on sub.
func (l *SubAssociationListener) HandleSubOperation(listener dimse.Listener, sub dimse.Association) (dimse.Association, error) {
	if sub == nil {
		if listener == nil {
			return nil, nil
		}
		conn, err := l.listener.Accept()
		if err != nil {
			// A refused sub-association does not end the C-MOVE.
			l.logger.Warn("Sub-association not established", "error", err)
			return nil, nil
		}
		l.logger.Info("Sub-association accepted", "remote_ae", conn.RemoteAETitle())
		return conn, nil
	}

	conn, ok := sub.(*pdu.Conn)
	if !ok {
		return nil, dimseerrors.New(dimseerrors.BadMessage, "sub-association %T was not accepted here", sub)
	}
	engine := l.store.engine
	pcid, msg, _, err := engine.ReceiveCommand(conn, dimse.Blocking, l.store.timeout)
	if err != nil {
		switch dimseerrors.KindOf(err) {
		case dimseerrors.PeerRequestedRelease:
			l.logger.Info("Sub-association released")
			return nil, conn.AcknowledgeRelease()
		case dimseerrors.PeerAbortedAssociation, dimseerrors.ReadPDVFailed:
			l.logger.Warn("Sub-association lost", "error", err)
			conn.Close()
			return nil, nil
		}
		conn.Abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
		return nil, err
	}

	switch m := msg.(type) {
	case *dimse.EchoRQ:
		return conn, engine.SendEchoResponse(conn, pcid, m, dimse.StatusSuccess, nil)
	case *dimse.StoreRQ:
		err := l.store.serve(conn, pcid, m)
		if dimseerrors.KindOf(err) == dimseerrors.OutOfResources {
			l.logger.Warn("Sub-operation instance not stored", "error", err)
			return conn, nil
		}
		if err != nil {
			l.logger.Warn("Sub-operation failed, aborting sub-association", "error", err)
			conn.Abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
			return nil, err
		}
		l.Received++
		return conn, nil
	}
	conn.Abort(pdu.AbortSourceServiceUser, pdu.AbortReasonUnexpectedPDU)
	return nil, dimseerrors.New(dimseerrors.UnexpectedRequest, "%s on a sub-association", msg.Command())
}

// AbortSubOperation aborts a sub-association left open by a failed C-MOVE.
func (l *SubAssociationListener) AbortSubOperation(sub dimse.Association) {
	conn, ok := sub.(*pdu.Conn)
	if !ok {
		return
	}
	l.logger.Warn("Aborting sub-association", "remote_ae", conn.RemoteAETitle())
	conn.Abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
}
