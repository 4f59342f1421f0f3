package observer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SampleKind classifies what a raw sample carries.
type SampleKind string

const (
	KindQuantity    SampleKind = "quantity"
	KindCategory    SampleKind = "category"
	KindCorrelation SampleKind = "correlation"
)

// Unit is a rate unit such as "count/min".
type Unit string

const (
	UnitCountPerSecond Unit = "count/s"
	UnitCountPerMinute Unit = "count/min"
	UnitCountPerHour   Unit = "count/h"
)

// unitScale maps each supported unit to its factor relative to count/min.
var unitScale = map[Unit]float64{
	UnitCountPerSecond: 60,
	UnitCountPerMinute: 1,
	UnitCountPerHour:   1.0 / 60,
}

// Quantity is a magnitude expressed in a unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// In converts the quantity into the target unit.
func (q Quantity) In(target Unit) (float64, error) {
	from, ok := unitScale[q.Unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown source unit %q", ErrUnitMismatch, q.Unit)
	}
	to, ok := unitScale[target]
	if !ok {
		return 0, fmt.Errorf("%w: unknown target unit %q", ErrUnitMismatch, target)
	}
	return q.Value * from / to, nil
}

// Device identifies the wearable a sample originated from.
type Device struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Sample is a raw record delivered by a sensor service.
type Sample struct {
	ID       uuid.UUID  `json:"id"`
	Kind     SampleKind `json:"kind"`
	Type     string     `json:"type"`
	Quantity Quantity   `json:"quantity"`
	Device   Device     `json:"device"`
	Start    time.Time  `json:"start"`
	End      time.Time  `json:"end"`
}

// NewQuantitySample builds a quantity sample with a fresh id.
func NewQuantitySample(sampleType SampleType, device Device, value float64, unit Unit, at time.Time) Sample {
	return Sample{
		ID:       uuid.New(),
		Kind:     KindQuantity,
		Type:     sampleType.Identifier,
		Quantity: Quantity{Value: value, Unit: unit},
		Device:   device,
		Start:    at,
		End:      at,
	}
}

// SampleType describes an observable quantity and its canonical unit.
type SampleType struct {
	Identifier string
	Unit       Unit
}

// Known sample types.
var (
	HeartRate        = SampleType{Identifier: "heart_rate", Unit: UnitCountPerMinute}
	RestingHeartRate = SampleType{Identifier: "resting_heart_rate", Unit: UnitCountPerMinute}
	RespiratoryRate  = SampleType{Identifier: "respiratory_rate", Unit: UnitCountPerMinute}
)

var sampleTypes = map[string]SampleType{
	HeartRate.Identifier:        HeartRate,
	RestingHeartRate.Identifier: RestingHeartRate,
	RespiratoryRate.Identifier:  RespiratoryRate,
}

// LookupSampleType resolves a sample type by identifier.
func LookupSampleType(identifier string) (SampleType, bool) {
	st, ok := sampleTypes[identifier]
	return st, ok
}

// SampleTypes returns the identifiers of all known sample types, sorted.
func SampleTypes() []string {
	ids := make([]string, 0, len(sampleTypes))
	for id := range sampleTypes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Access is the kind of permission requested for a sample type.
type Access string

const (
	AccessRead  Access = "read"
	AccessShare Access = "share"
)

// Capability is a single permission on a sample type.
type Capability struct {
	Type   string `json:"type"`
	Access Access `json:"access"`
}

// String returns "<type>.<access>".
func (c Capability) String() string {
	return c.Type + "." + string(c.Access)
}

// CapabilitySet is the set of permissions requested in one authorization.
type CapabilitySet []Capability

// NewCapabilitySet requests read and share access to each given type.
func NewCapabilitySet(types ...SampleType) CapabilitySet {
	set := make(CapabilitySet, 0, len(types)*2)
	for _, t := range types {
		set = append(set,
			Capability{Type: t.Identifier, Access: AccessRead},
			Capability{Type: t.Identifier, Access: AccessShare},
		)
	}
	return set
}
