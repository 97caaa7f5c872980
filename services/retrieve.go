package services

import (
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/interfaces"
)

// subOpFunc performs one sub-operation and returns the C-STORE status.
type subOpFunc func(inst *interfaces.Instance) (uint16, error)

// retrieval tracks one C-MOVE or C-GET across the provider callbacks: call
// n performs sub-operation n.
type retrieval struct {
	instances []*interfaces.Instance
	counts    dimse.SubOperations
	failed    []string
	// cancelled is set when a C-CANCEL-RQ was consumed while waiting for a
	// sub-operation response.
	cancelled bool
}

func newRetrieval(instances []*interfaces.Instance) *retrieval {
	return &retrieval{
		instances: instances,
		counts:    dimse.SubOperations{Remaining: uint16(len(instances))},
	}
}

// step runs sub-operation count and reports the response to send.
func (r *retrieval) step(cancelled bool, count int, store subOpFunc) dimse.SubOpResult {
	if cancelled || r.cancelled {
		return dimse.SubOpResult{Status: dimse.StatusCancel, SubOperations: r.counts}
	}
	if count > len(r.instances) {
		return r.final()
	}

	inst := r.instances[count-1]
	status, err := store(inst)
	r.counts.Remaining--
	switch {
	case err != nil && status == dimse.StatusSuccess, dimse.Classify(dimse.ServiceStore, status) == dimse.Failure:
		r.counts.Failed++
		r.failed = append(r.failed, inst.SOPInstanceUID)
	case status != dimse.StatusSuccess:
		r.counts.Warning++
	default:
		r.counts.Completed++
	}

	if r.counts.Remaining > 0 {
		return dimse.SubOpResult{Status: dimse.StatusPending, SubOperations: r.counts}
	}
	return r.final()
}

func (r *retrieval) final() dimse.SubOpResult {
	return dimse.SubOpResult{
		Status:        retrieveStatus(r.counts),
		SubOperations: r.counts,
		Identifier:    FailedInstances(r.failed),
	}
}

// failAll ends the retrieve before any sub-operation ran.
func (r *retrieval) failAll(status uint16) dimse.SubOpResult {
	for _, inst := range r.instances {
		r.failed = append(r.failed, inst.SOPInstanceUID)
	}
	r.counts = dimse.SubOperations{Failed: uint16(len(r.instances))}
	return dimse.SubOpResult{Status: status, SubOperations: r.counts, Identifier: FailedInstances(r.failed)}
}
