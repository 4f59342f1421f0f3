package observer

import "context"

// NoLimit requests an unbounded continuous query.
const NoLimit = 0

// Service is the platform sensor framework the observer drives.
type Service interface {
	// Available reports whether sensor data can be accessed at all.
	Available(ctx context.Context) bool
	// RequestAuthorization asks for the capability set. A refusal must wrap
	// ErrAuthorizationDenied.
	RequestAuthorization(ctx context.Context, caps CapabilitySet) error
	// OpenQuery starts a continuous query. Batches are delivered until the
	// query is closed, after which the Batches channel is closed.
	OpenQuery(ctx context.Context, spec QuerySpec) (Query, error)
}

// Anchor marks a position in the sensor store.
type Anchor struct {
	Sequence uint64 `json:"sequence"`
}

// QuerySpec describes a continuous query.
type QuerySpec struct {
	Type SampleType
	// Devices restricts results to samples from these devices. Empty means any device.
	Devices []Device
	// Anchor resumes after a previous position. Nil starts from the beginning of the store.
	Anchor *Anchor
	// Limit caps the initial result set. NoLimit means unbounded.
	Limit int
}

// MatchesDevice reports whether a sample from d passes the device filter.
func (s QuerySpec) MatchesDevice(d Device) bool {
	if len(s.Devices) == 0 {
		return true
	}
	for _, want := range s.Devices {
		if want.ID == d.ID {
			return true
		}
	}
	return false
}

// Batch is one delivery from a continuous query.
type Batch struct {
	Samples []Sample
	Anchor  *Anchor
	Err     error
}

// Query is a live continuous query handle.
type Query interface {
	Batches() <-chan Batch
	Close() error
}
