package interfaces

import "github.com/caio-sobreiro/dimsenet/dicom"

// Instance is one stored composite object.
type Instance struct {
	SOPClassUID    string
	SOPInstanceUID string
	Dataset        *dicom.Dataset
}

// InstanceStore persists instances for the storage and query/retrieve
// services.
type InstanceStore interface {
	Put(ds *dicom.Dataset) (*Instance, error)
	Get(sopInstanceUID string) (*Instance, bool)
	// Select returns the instances matching every non-empty key.
	Select(keys *dicom.Dataset) []*Instance
	// Find returns one identifier per entity at the query/retrieve level
	// named in keys.
	Find(keys *dicom.Dataset) ([]*dicom.Dataset, error)
}
