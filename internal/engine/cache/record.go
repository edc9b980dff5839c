package cache

import (
	"maps"
	"time"
)

// Record is one cached document.
type Record struct {
	// DocumentID is the unique key of the document.
	DocumentID string `json:"document_id" bson:"document_id" msgpack:"document_id"`

	// UpdatedAt is when the document was last written, in UTC.
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" msgpack:"updated_at"`

	// Document is the cached payload.
	Document map[string]any `json:"document" bson:"document" msgpack:"document"`
}

// NewRecord stamps document with the current UTC time.
func NewRecord(documentID string, document map[string]any) Record {
	return Record{
		DocumentID: documentID,
		UpdatedAt:  time.Now().UTC(),
		Document:   document,
	}
}

// Age returns the duration since the record was written.
func (r Record) Age() time.Duration {
	return time.Since(r.UpdatedAt)
}

// Clone returns a copy of r whose top-level Document map is not shared.
func (r Record) Clone() Record {
	r.Document = maps.Clone(r.Document)
	return r
}
