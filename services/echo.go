// Package services provides reusable DICOM service implementations.
//
// This package contains the SCP side of the standard DIMSE services, built on
// the exchange engine and an instance store. Every handler is registered on a
// Registry, which drives the association.
package services

import (
	"context"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
)

// EchoService handles C-ECHO verification requests.
//
// C-ECHO is used to verify connectivity and application-level communication
// between two DICOM Application Entities (AEs). It's the DICOM equivalent
// of a "ping" operation.
type EchoService struct {
	// Status is returned for every request; zero means Success.
	Status uint16
}

// NewEchoService creates a new C-ECHO service instance.
func NewEchoService() *EchoService {
	return &EchoService{}
}

// HandleDIMSE answers a C-ECHO-RQ.
//
// According to DICOM standard PS3.7, C-ECHO carries no data set and simply
// returns a status indicating whether the AE is operational.
func (s *EchoService) HandleDIMSE(ctx context.Context, req *interfaces.Request) error {
	rq, ok := req.Message.(*dimse.EchoRQ)
	if !ok {
		return dimseerrors.New(dimseerrors.UnexpectedRequest, "echo service got %s", req.Message.Command())
	}
	logger := requestLogger(req)
	logger.DebugContext(ctx, "Processing C-ECHO request", "message_id", rq.MessageID)

	if err := req.Engine.SendEchoResponse(req.Conn, req.ContextID, rq, s.Status, nil); err != nil {
		return err
	}

	logger.InfoContext(ctx, "C-ECHO request successful", "message_id", rq.MessageID)
	return nil
}
