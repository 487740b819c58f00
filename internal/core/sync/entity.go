// Package sync implements the synchronization and conflict-resolution engine
// for per-user calculation records and parameter sets. It reconciles
// independently modified client and server copies of the same entities,
// flags divergence, applies explicit whole-record resolution policies and
// records every exchange in an append-only sync log.
package sync

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Kind selects one of the two synchronized entity collections. String
// record types arriving on the wire are resolved to a Kind once at the
// boundary; the engine never dispatches on raw strings.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindCalculationRecord
	KindParameterSet
)

// Kinds lists every syncable entity kind, in batch processing order.
var Kinds = []Kind{KindCalculationRecord, KindParameterSet}

// ParseKind resolves a wire-level record type to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "calculation_record", "calculation_records":
		return KindCalculationRecord, nil
	case "parameter_set", "parameter_sets":
		return KindParameterSet, nil
	default:
		return KindUnknown, ErrInvalidKind
	}
}

func (k Kind) String() string {
	switch k {
	case KindCalculationRecord:
		return "calculation_record"
	case KindParameterSet:
		return "parameter_set"
	default:
		return "unknown"
	}
}

// Payload is the kind-specific free-form document carried by an entity,
// e.g. {"parameters": ..., "results": ...} for a calculation record.
type Payload map[string]any

// Digest returns a canonical hash of the payload. encoding/json emits map
// keys in sorted order, so two payloads with equal content hash equally
// regardless of construction order. A payload that cannot be marshalled
// hashes to zero.
func (p Payload) Digest() uint64 {
	if p == nil {
		return 0
	}
	b, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// Clone returns a shallow copy of the payload's top level. Nested values
// are shared; the engine never mutates payload internals.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Entity is one synchronized record. The ID is client-generated, globally
// unique and immutable; it doubles as the idempotency key across devices.
// UpdatedAt is monotonically non-decreasing per ID as seen by the store.
type Entity struct {
	ID             string
	OwnerID        string
	Kind           Kind
	Payload        Payload
	CreatedAt      time.Time
	UpdatedAt      time.Time
	OriginDeviceID string
}

// Statistics counts the outcome of one sync exchange. Batch sync adds the
// per-kind statistics field-wise into an overall figure.
type Statistics struct {
	Uploaded   int `json:"uploadedCount"`
	Downloaded int `json:"downloadedCount"`
	Conflicts  int `json:"conflictCount"`
}

// Add returns the field-wise sum of s and o.
func (s Statistics) Add(o Statistics) Statistics {
	return Statistics{
		Uploaded:   s.Uploaded + o.Uploaded,
		Downloaded: s.Downloaded + o.Downloaded,
		Conflicts:  s.Conflicts + o.Conflicts,
	}
}
