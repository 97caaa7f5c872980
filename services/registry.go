package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
	"github.com/caio-sobreiro/dimsenet/pdu"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Registry manages DICOM service handlers and routes incoming DIMSE messages.
//
// The registry acts as a dispatcher, routing each received request to the
// handler registered for its command field. Requests without a handler are
// answered with a failure response so the peer is never left waiting.
//
// Example usage:
//
//	registry := services.NewRegistry()
//	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())
//	registry.RegisterHandler(types.CFindRQ, services.NewFindService(archive))
//
//	// For every accepted association:
//	err := registry.Serve(ctx, engine, conn, readTimeout, logger)
type Registry struct {
	handlers map[types.CommandField]interfaces.ServiceHandler
}

// NewRegistry creates a new service registry.
//
// Returns an empty registry. Use RegisterHandler to add service handlers.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[types.CommandField]interfaces.ServiceHandler),
	}
}

// RegisterHandler registers a service handler for a specific DIMSE command.
//
// Only one handler can be registered per command field; calling
// RegisterHandler again with the same command will replace the previous handler.
func (r *Registry) RegisterHandler(commandField types.CommandField, handler interfaces.ServiceHandler) {
	r.handlers[commandField] = handler
}

// UnregisterHandler removes a service handler for a specific DIMSE command.
//
// After unregistering, requests with this command field are answered as
// unsupported.
func (r *Registry) UnregisterHandler(commandField types.CommandField) {
	delete(r.handlers, commandField)
}

// HasHandler returns true if a handler is registered for the given command field.
func (r *Registry) HasHandler(commandField types.CommandField) bool {
	_, ok := r.handlers[commandField]
	return ok
}

// RegisteredCommands returns the command fields that have handlers, in
// ascending order.
func (r *Registry) RegisteredCommands() []types.CommandField {
	commands := make([]types.CommandField, 0, len(r.handlers))
	for cmd := range r.handlers {
		commands = append(commands, cmd)
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i] < commands[j] })
	return commands
}

// AcceptPolicy accepts the abstract syntaxes the registered handlers can
// serve. Storage classes are also accepted when C-GET is served, since the
// instances travel back as C-STOREs on the same association.
func (r *Registry) AcceptPolicy() pdu.AcceptPolicy {
	return pdu.SyntaxPolicy(func(uid string) bool {
		return r.servesKind(types.SOPClassKind(uid))
	})
}

func (r *Registry) servesKind(kind types.ServiceKind) bool {
	switch kind {
	case types.ServiceKindVerification:
		return r.HasHandler(types.CEchoRQ)
	case types.ServiceKindStorage:
		return r.HasHandler(types.CStoreRQ) || r.HasHandler(types.CGetRQ)
	case types.ServiceKindFind:
		return r.HasHandler(types.CFindRQ)
	case types.ServiceKindMove:
		return r.HasHandler(types.CMoveRQ)
	case types.ServiceKindGet:
		return r.HasHandler(types.CGetRQ)
	case types.ServiceKindNormalized:
		for _, cmd := range []types.CommandField{types.NEventReportRQ, types.NGetRQ, types.NSetRQ, types.NActionRQ, types.NCreateRQ, types.NDeleteRQ} {
			if r.HasHandler(cmd) {
				return true
			}
		}
	}
	return false
}

// HandleDIMSE routes one request to its handler. Requests without a handler
// get a 0xC000 response, or 0x0211 for the normalized services; a data set
// they announce is read and discarded first.
func (r *Registry) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	cmd := req.Message.Command()
	logger := requestLogger(req)
	logger.DebugContext(ctx, "Routing DIMSE message",
		"command_field", fmt.Sprintf("0x%04x", uint16(cmd)),
		"context_id", req.ContextID)

	handler, ok := r.handlers[cmd]
	if !ok {
		logger.WarnContext(ctx, "No handler registered for DIMSE command",
			"command_field", fmt.Sprintf("0x%04x", uint16(cmd)))
		return respondUnsupported(req)
	}
	return handler.HandleDIMSE(ctx, req)
}

// Serve dispatches the commands received on conn until the peer releases or
// aborts the association, ctx is done or a handler fails. A release is
// acknowledged; a failure aborts the association.
func (r *Registry) Serve(ctx context.Context, e *dimse.Engine, conn *pdu.Conn, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("calling_ae", conn.RemoteAETitle())

	for {
		if err := ctx.Err(); err != nil {
			_ = conn.Abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonNotSpecified)
			return err
		}

		pcid, msg, _, err := e.ReceiveCommand(conn, dimse.Blocking, timeout)
		if err != nil {
			switch dimseerrors.KindOf(err) {
			case dimseerrors.PeerRequestedRelease:
				logger.InfoContext(ctx, "Association released")
				return conn.AcknowledgeRelease()
			case dimseerrors.PeerAbortedAssociation:
				logger.InfoContext(ctx, "Association aborted by peer")
				return nil
			case dimseerrors.NoDataAvailable:
				logger.WarnContext(ctx, "Association idle, aborting", "timeout", timeout)
			}
			_ = conn.Abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonNotSpecified)
			return err
		}

		req := &interfaces.Request{
			Conn:      conn,
			Engine:    e,
			ContextID: pcid,
			Message:   msg,
			Timeout:   timeout,
			Logger:    logger,
		}
		err = r.HandleDIMSE(ctx, req)
		switch {
		case err == nil:
		case dimseerrors.KindOf(err) == dimseerrors.OutOfResources:
			// The response already went out; the association is still in step.
			logger.WarnContext(ctx, "Request served without storage", "command", msg.Command(), "error", err)
		case dimseerrors.IsAssociationEnd(err):
			logger.InfoContext(ctx, "Association ended during request", "command", msg.Command(), "error", err)
			return nil
		default:
			_ = conn.Abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonNotSpecified)
			return fmt.Errorf("%s: %w", msg.Command(), err)
		}
	}
}

func requestLogger(req *interfaces.Request) *slog.Logger {
	if req.Logger != nil {
		return req.Logger
	}
	return slog.Default()
}
