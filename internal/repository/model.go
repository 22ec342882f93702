package repository

import (
	"encoding/json"
	"slices"
)

// Metadata holds versioning info for optimistic locking.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// Document is the persisted form of a whole store: its records plus the
// version they were saved at.
type Document[S any] struct {
	Metadata Metadata `json:"metadata"`
	Records  []S      `json:"records" validate:"dive"`
}

// ApplyDefaults sets fallback values after decode.
func (d *Document[S]) ApplyDefaults() {
	if d.Records == nil {
		d.Records = []S{}
	}
}

// AreDocumentsEqual compares two documents ignoring Metadata and record
// order. Records are compared by their JSON encoding.
func AreDocumentsEqual[S any](a, b *Document[S]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Records) != len(b.Records) {
		return false
	}

	aKeys, err := encodeAll(a.Records)
	if err != nil {
		return false
	}
	bKeys, err := encodeAll(b.Records)
	if err != nil {
		return false
	}
	slices.Sort(aKeys)
	slices.Sort(bKeys)
	return slices.Equal(aKeys, bKeys)
}

func encodeAll[S any](records []S) ([]string, error) {
	out := make([]string, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}
