package pdu

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/types"
)

func setNegotiationDeadline(conn net.Conn, d time.Duration) error {
	if d <= 0 {
		return conn.SetDeadline(time.Time{})
	}
	return conn.SetDeadline(time.Now().Add(d))
}

// Accept negotiates an association on a freshly accepted connection. The
// connection is closed when negotiation fails.
func Accept(conn net.Conn, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With("remote_addr", conn.RemoteAddr().String())
	logger.Info("New DICOM connection")

	fail := func(err error) (*Conn, error) {
		conn.Close()
		return nil, err
	}
	if err := setNegotiationDeadline(conn, cfg.ReadTimeout); err != nil {
		return fail(dimseerrors.NewNetworkError("set deadline", err))
	}

	br := bufio.NewReader(conn)
	p, err := ReadPDU(br)
	if err != nil {
		return fail(fmt.Errorf("failed to read association request: %w", dimseerrors.NewNetworkError("read", err)))
	}
	if p.Type != TypeAssociateRQ {
		_, _ = conn.Write(encodeAbort(AbortSourceServiceProvider, AbortReasonUnexpectedPDU).Bytes())
		return fail(dimseerrors.NewPDUError(p.Type, "expected A-ASSOCIATE-RQ"))
	}
	rq, err := DecodeAssociateRQ(p.Data)
	if err != nil {
		_, _ = conn.Write(encodeAbort(AbortSourceServiceProvider, AbortReasonInvalidPDUItem).Bytes())
		return fail(err)
	}

	logger.Info("Extracted AE titles from association request",
		"calling_ae", rq.CallingAETitle,
		"called_ae", rq.CalledAETitle)

	reject := func(reason dimseerrors.AssociationRejectReason, msg string) (*Conn, error) {
		rj := &AssociateRJ{Result: 0x01, Source: dimseerrors.RejectSourceServiceUser, Reason: reason}
		_, _ = conn.Write(rj.Encode().Bytes())
		logger.Warn("Rejected association", "reason", reason, "detail", msg)
		return fail(dimseerrors.NewAssociationError(rj.Source, reason, msg))
	}
	if rq.ApplicationContext != "" && rq.ApplicationContext != types.ApplicationContextUID {
		return reject(dimseerrors.RejectReasonApplicationContextNotSupported, rq.ApplicationContext)
	}
	if len(rq.Contexts) == 0 {
		return reject(dimseerrors.RejectReasonNoReasonGiven, "no presentation contexts proposed")
	}

	contexts := negotiate(rq.Contexts, cfg.Policy)
	accepted := 0
	for _, pc := range contexts {
		logger.Debug("Presentation context negotiation result",
			"context_id", pc.ID,
			"abstract_syntax", pc.AbstractSyntax,
			"selected_transfer_syntax", pc.TransferSyntax,
			"result", pc.Result)
		if pc.Accepted() {
			accepted++
		}
	}

	calledAE := rq.CalledAETitle
	if cfg.AETitle != "" {
		calledAE = cfg.AETitle
	}
	ac := &AssociateAC{
		CalledAETitle:  calledAE,
		CallingAETitle: rq.CallingAETitle,
		Contexts:       contexts,
		MaxPDULength:   cfg.MaxPDULength,
	}
	if _, err := conn.Write(ac.Encode().Bytes()); err != nil {
		return fail(fmt.Errorf("failed to send A-ASSOCIATE-AC: %w", dimseerrors.NewNetworkError("write", err)))
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return fail(dimseerrors.NewNetworkError("set deadline", err))
	}

	logger.Info("Negotiated presentation contexts",
		"calling_ae", rq.CallingAETitle,
		"proposed", len(rq.Contexts),
		"accepted", accepted,
		"max_pdu_length", rq.MaxPDULength)

	cfg.AETitle = calledAE
	return newConn(conn, br, cfg, rq.CallingAETitle, contexts, rq.MaxPDULength), nil
}

// Request negotiates an association as requestor over conn. rq's calling
// AE title and maximum length default to cfg.
func Request(conn net.Conn, rq AssociateRQ, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	if rq.CallingAETitle == "" {
		rq.CallingAETitle = cfg.AETitle
	}
	if rq.MaxPDULength == 0 {
		rq.MaxPDULength = cfg.MaxPDULength
	}
	fail := func(err error) (*Conn, error) {
		conn.Close()
		return nil, err
	}
	if err := setNegotiationDeadline(conn, cfg.ReadTimeout); err != nil {
		return fail(dimseerrors.NewNetworkError("set deadline", err))
	}

	if _, err := conn.Write(rq.Encode().Bytes()); err != nil {
		return fail(fmt.Errorf("failed to send A-ASSOCIATE-RQ: %w", dimseerrors.NewNetworkError("write", err)))
	}

	br := bufio.NewReader(conn)
	p, err := ReadPDU(br)
	if err != nil {
		return fail(fmt.Errorf("failed to receive A-ASSOCIATE-AC: %w", dimseerrors.NewNetworkError("read", err)))
	}
	switch p.Type {
	case TypeAssociateAC:
	case TypeAssociateRJ:
		return fail(DecodeAssociateRJ(p.Data).Err())
	case TypeAbort:
		return fail(decodeAbort(p.Data))
	default:
		return fail(dimseerrors.NewPDUError(p.Type, "expected A-ASSOCIATE-AC"))
	}
	ac, err := DecodeAssociateAC(p.Data, rq.Contexts)
	if err != nil {
		return fail(err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return fail(dimseerrors.NewNetworkError("set deadline", err))
	}

	cfg.AETitle = rq.CallingAETitle
	c := newConn(conn, br, cfg, rq.CalledAETitle, ac.Contexts, ac.MaxPDULength)
	for _, pc := range ac.Contexts {
		c.logger.Debug("Presentation context negotiation",
			"context_id", pc.ID,
			"abstract_syntax", pc.AbstractSyntax,
			"result", pc.Result,
			"accepted", pc.Accepted(),
			"transfer_syntax", pc.TransferSyntax)
	}
	c.logger.Info("DICOM association established",
		"calling_ae", rq.CallingAETitle,
		"called_ae", rq.CalledAETitle)
	return c, nil
}

// Dial connects to address and negotiates an association.
func Dial(ctx context.Context, address string, rq AssociateRQ, cfg Config) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", dimseerrors.NewNetworkError("dial", err))
	}
	return Request(conn, rq, cfg)
}
