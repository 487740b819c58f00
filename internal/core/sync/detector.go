package sync

// Classification is the verdict on one uploaded entity versus the store's
// current row for the same ID.
type Classification uint8

const (
	// ClassificationNew means no server row exists; the upload is accepted.
	ClassificationNew Classification = iota
	// ClassificationUnchanged means the upload carries equal-or-newer
	// information than the server row; the upload is applied.
	ClassificationUnchanged
	// ClassificationConflicting means the upload is provably stale relative
	// to the server row; the store must not be mutated.
	ClassificationConflicting
)

func (c Classification) String() string {
	switch c {
	case ClassificationNew:
		return "new"
	case ClassificationUnchanged:
		return "unchanged"
	case ClassificationConflicting:
		return "conflicting"
	default:
		return "invalid"
	}
}

// Classify compares a client-submitted entity against the server's current
// row (nil when absent). Pure; no side effects.
//
// A strictly newer server row means the client submitted state it knew to be
// stale: conflicting. Equal timestamps with differing payload digests cannot
// be ordered either way and are also conflicting; equal timestamps with
// equal payloads are an idempotent re-upload.
func Classify(client Entity, server *Entity) Classification {
	if server == nil {
		return ClassificationNew
	}
	if server.UpdatedAt.After(client.UpdatedAt) {
		return ClassificationConflicting
	}
	if server.UpdatedAt.Equal(client.UpdatedAt) && server.Payload.Digest() != client.Payload.Digest() {
		return ClassificationConflicting
	}
	return ClassificationUnchanged
}
