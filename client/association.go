package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/pdu"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Association represents a client-side DICOM association
type Association struct {
	conn    *pdu.Conn
	engine  *dimse.Engine
	logger  *slog.Logger
	timeout time.Duration
}

// Config holds client configuration
type Config struct {
	CallingAETitle            string
	CalledAETitle             string
	MaxPDULength              uint32
	ConnectTimeout            time.Duration // Timeout for establishing connection (default: 30s)
	ReadTimeout               time.Duration // Timeout for read operations (default: 60s)
	WriteTimeout              time.Duration // Timeout for write operations (default: 60s)
	Logger                    *slog.Logger  // Logger for the association (default: slog.Default())
	PreferredTransferSyntaxes []string      // Transfer syntaxes to propose (default: Explicit VR, Implicit VR)
	// AbstractSyntaxes are proposed one context each, in order. Empty
	// proposes DefaultAbstractSyntaxes.
	AbstractSyntaxes []string
	// Engine runs the DIMSE exchanges (default: dimse.New with Logger).
	Engine *dimse.Engine
}

// DefaultAbstractSyntaxes are proposed when Config.AbstractSyntaxes is empty.
var DefaultAbstractSyntaxes = []string{
	types.CTImageStorage,
	types.MRImageStorage,
	types.SecondaryCaptureImageStorage,
	types.VerificationSOPClass,
	types.StudyRootQueryRetrieveInformationModelFind,
	types.StudyRootQueryRetrieveInformationModelMove,
	types.StudyRootQueryRetrieveInformationModelGet,
	types.PatientRootQueryRetrieveInformationModelFind,
	types.PatientRootQueryRetrieveInformationModelMove,
	types.PatientRootQueryRetrieveInformationModelGet,
}

func (c Config) withDefaults() Config {
	if c.MaxPDULength == 0 {
		c.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if len(c.PreferredTransferSyntaxes) == 0 {
		c.PreferredTransferSyntaxes = types.GetCommonTransferSyntaxes()
	}
	if len(c.AbstractSyntaxes) == 0 {
		c.AbstractSyntaxes = DefaultAbstractSyntaxes
	}
	if c.Engine == nil {
		c.Engine = dimse.New(dimse.Config{Logger: c.Logger})
	}
	return c
}

// proposedContexts gives each abstract syntax an odd context id.
func proposedContexts(abstractSyntaxes, transferSyntaxes []string) ([]pdu.ProposedContext, error) {
	if len(abstractSyntaxes) > 128 {
		return nil, fmt.Errorf("too many presentation contexts: %d", len(abstractSyntaxes))
	}
	contexts := make([]pdu.ProposedContext, 0, len(abstractSyntaxes))
	for i, as := range abstractSyntaxes {
		contexts = append(contexts, pdu.ProposedContext{
			ID:               byte(2*i + 1),
			AbstractSyntax:   as,
			TransferSyntaxes: transferSyntaxes,
		})
	}
	return contexts, nil
}

// Connect establishes a DICOM association with a remote SCP
func Connect(address string, config Config) (*Association, error) {
	config = config.withDefaults()
	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	return ConnectContext(ctx, address, config)
}

// ConnectContext is Connect with the dial bounded by ctx instead of
// ConnectTimeout.
func ConnectContext(ctx context.Context, address string, config Config) (*Association, error) {
	config = config.withDefaults()
	contexts, err := proposedContexts(config.AbstractSyntaxes, config.PreferredTransferSyntaxes)
	if err != nil {
		return nil, err
	}

	rq := pdu.AssociateRQ{
		CalledAETitle:  config.CalledAETitle,
		CallingAETitle: config.CallingAETitle,
		Contexts:       contexts,
		MaxPDULength:   config.MaxPDULength,
	}
	conn, err := pdu.Dial(ctx, address, rq, pdu.Config{
		AETitle:      config.CallingAETitle,
		MaxPDULength: config.MaxPDULength,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		Logger:       config.Logger,
	})
	if err != nil {
		return nil, err
	}
	return newAssociation(conn, config), nil
}

func newAssociation(conn *pdu.Conn, config Config) *Association {
	return &Association{
		conn:    conn,
		engine:  config.Engine,
		logger:  config.Logger.With("called_ae", conn.RemoteAETitle()),
		timeout: config.ReadTimeout,
	}
}

// Conn returns the underlying association for direct engine calls.
func (a *Association) Conn() *pdu.Conn { return a.conn }

// Engine returns the engine the helpers run on.
func (a *Association) Engine() *dimse.Engine { return a.engine }

// Close gracefully closes the association
func (a *Association) Close() error {
	return a.Release()
}

// Release sends A-RELEASE-RQ and waits for the reply.
func (a *Association) Release() error {
	if err := a.conn.Release(); err != nil {
		a.logger.Warn("Association release failed", "error", err)
		return err
	}
	return nil
}

// Abort drops the association with an A-ABORT.
func (a *Association) Abort() error {
	return a.conn.Abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
}

// GetPresentationContextID finds a presentation context for the given abstract syntax
func (a *Association) GetPresentationContextID(abstractSyntax string) (byte, error) {
	if id, ok := dimse.FindAcceptedContext(a.conn, abstractSyntax, ""); ok {
		return id, nil
	}
	return 0, dimseerrors.New(dimseerrors.InvalidPresentationContextID,
		"no accepted presentation context for abstract syntax: %s", abstractSyntax)
}

func (a *Association) messageID(id uint16) uint16 {
	if id == 0 {
		return a.conn.NextMessageID()
	}
	return id
}

// statusError turns a failure status into a DIMSEError.
func statusError(service dimse.Service, status uint16) error {
	if dimse.Classify(service, status) != dimse.Failure {
		return nil
	}
	return dimseerrors.NewDIMSEError(service.String(), status, dimse.StatusString(service, status))
}
