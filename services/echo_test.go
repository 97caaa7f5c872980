package services

import (
	"context"
	"errors"
	"testing"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/interfaces"
	"github.com/caio-sobreiro/dimsenet/types"
)

func TestNewEchoService(t *testing.T) {
	service := NewEchoService()
	if service == nil {
		t.Fatal("Expected non-nil service")
	}
	if service.Status != dimse.StatusSuccess {
		t.Errorf("Status = 0x%04x, want success", service.Status)
	}
}

func TestEchoService_HandleDIMSE(t *testing.T) {
	tests := []struct {
		name      string
		status    uint16
		messageID uint16
		wantErr   bool
	}{
		{name: "Basic C-ECHO request", status: dimse.StatusSuccess, messageID: 1},
		{name: "C-ECHO with different message ID", status: dimse.StatusSuccess, messageID: 42},
		{name: "Refusing echo service", status: dimse.StatusUnableToProcess, messageID: 7, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			registry.RegisterHandler(types.CEchoRQ, &EchoService{Status: tt.status})
			srv := startServer(t, registry, nil, testTimeout)
			assoc := srv.connect(t, types.VerificationSOPClass)

			resp, err := assoc.SendCEcho(tt.messageID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SendCEcho() error = %v, wantErr %v", err, tt.wantErr)
			}
			if resp == nil {
				t.Fatal("Expected non-nil response")
			}
			if resp.Status != tt.status {
				t.Errorf("Status = 0x%04x, want 0x%04x", resp.Status, tt.status)
			}
			if resp.MessageID != tt.messageID {
				t.Errorf("MessageID = %d, want %d", resp.MessageID, tt.messageID)
			}
			srv.release(t, assoc)
		})
	}
}

func TestEchoService_WrongCommand(t *testing.T) {
	service := NewEchoService()
	req := &interfaces.Request{
		Message: &dimse.FindRQ{MessageID: 1, AffectedSOPClassUID: types.StudyRootQueryRetrieveInformationModelFind},
		Logger:  quietLogger(),
	}

	err := service.HandleDIMSE(context.Background(), req)
	if !errors.Is(err, dimseerrors.ErrUnexpectedRequest) {
		t.Errorf("HandleDIMSE() error = %v, want unexpected request", err)
	}
}
