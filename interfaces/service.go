// Package interfaces contains the handler and storage contracts shared by
// the server and the built-in services.
package interfaces

import (
	"context"
	"log/slog"
	"time"

	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/pdu"
)

// Request is one command received on an association together with what a
// handler needs to answer it. Data sets announced by the command have not
// been read yet.
type Request struct {
	Conn      *pdu.Conn
	Engine    *dimse.Engine
	ContextID byte
	Message   dimse.Message
	// Timeout bounds every read the handler makes.
	Timeout time.Duration
	Logger  *slog.Logger
}

// ServiceHandler answers requests of one DIMSE command.
type ServiceHandler interface {
	HandleDIMSE(ctx context.Context, req *Request) error
}

// HandlerFunc adapts a function to ServiceHandler.
type HandlerFunc func(ctx context.Context, req *Request) error

func (f HandlerFunc) HandleDIMSE(ctx context.Context, req *Request) error {
	return f(ctx, req)
}
