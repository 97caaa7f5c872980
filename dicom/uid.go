package dicom

import (
	"math/big"

	"github.com/google/uuid"
)

// Identification sent in association requests and file meta headers.
const (
	ImplementationClassUIDValue = "2.25.225318063428417468735003486573640103291"
	ImplementationVersionValue  = "DIMSENET_010"
)

// NewUID returns a UUID derived UID under the 2.25 root.
func NewUID() string {
	id := uuid.New()
	return "2.25." + new(big.Int).SetBytes(id[:]).String()
}
