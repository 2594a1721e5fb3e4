package resource

import "sigs.k8s.io/controller-runtime/pkg/client"

// ResultType tags the outcome of reconciling one resource.
type ResultType int

const (
	NoChange ResultType = iota
	Created
	Patched
	Deleted
)

func (t ResultType) String() string {
	switch t {
	case Created:
		return "Created"
	case Patched:
		return "Patched"
	case Deleted:
		return "Deleted"
	default:
		return "NoChange"
	}
}

// Result is the outcome of one Reconcile call. Object is the stored state
// after the call, or nil for Deleted and for NoChange on an absent resource.
type Result[PT client.Object] struct {
	Type   ResultType
	Object PT
}

// Changed reports whether the call wrote to the store.
func (r Result[PT]) Changed() bool {
	return r.Type != NoChange
}
