package observer

// DropReason explains why a sample produced no reading.
type DropReason string

const (
	DropKind DropReason = "kind"
	DropType DropReason = "type"
	DropUnit DropReason = "unit"

	// DropSubscriberFull counts readings a subscriber missed because its
	// buffer was full.
	DropSubscriberFull DropReason = "subscriber_full"
)

// Stage names where a fault was raised.
type Stage string

const (
	StageAuthorization Stage = "authorization"
	StageQuery         Stage = "query"
	StageBatch         Stage = "batch"
)

// Metrics receives observer events for instrumentation.
// Calls are made from the delivery goroutine and must not block.
type Metrics interface {
	ReadingPublished(r Reading)
	SampleDropped(reason DropReason)
	FaultRaised(stage Stage)
	AvailabilityChanged(available bool)
}

type noopMetrics struct{}

func (noopMetrics) ReadingPublished(Reading) {}
func (noopMetrics) SampleDropped(DropReason) {}
func (noopMetrics) FaultRaised(Stage)        {}
func (noopMetrics) AvailabilityChanged(bool) {}
