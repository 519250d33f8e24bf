package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// GeoRecord is the primary-store geometry record for a document. It is the
// source of truth an upserted outbox event refers to; the record's current
// content hash is compared against the event's captured hash for idempotency.
type GeoRecord struct {
	DocumentID  string                 `json:"document_id" badgerhold:"key"`
	Geometry    map[string]interface{} `json:"geometry"` // GeoJSON-shaped geometry
	ContentHash string                 `json:"content_hash"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewGeoRecord creates a geo record with its content hash computed from the
// geometry payload.
func NewGeoRecord(documentID string, geometry map[string]interface{}) *GeoRecord {
	return &GeoRecord{
		DocumentID:  documentID,
		Geometry:    geometry,
		ContentHash: ComputeContentHash(geometry),
		UpdatedAt:   time.Now(),
	}
}

// SpatialFeature is the secondary-index entry derived from a geo record.
// The stored content hash makes replayed upserts no-op writes.
type SpatialFeature struct {
	DocumentID  string                 `json:"document_id" badgerhold:"key"`
	Geometry    map[string]interface{} `json:"geometry"`
	ContentHash string                 `json:"content_hash"`
	SyncedAt    time.Time              `json:"synced_at"`
}

// ComputeContentHash returns the sha256 hex fingerprint of a geometry
// payload. Keys are serialized in sorted order so the hash is stable across
// map iteration order.
func ComputeContentHash(payload map[string]interface{}) string {
	h := sha256.New()
	writeCanonical(h, payload)
	return hex.EncodeToString(h.Sum(nil))
}

func writeCanonical(h interface{ Write([]byte) (int, error) }, payload map[string]interface{}) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		h.Write([]byte(k))
		switch v := payload[k].(type) {
		case map[string]interface{}:
			writeCanonical(h, v)
		default:
			// json.Marshal on scalars and slices never fails for
			// JSON-shaped context data
			b, _ := json.Marshal(v)
			h.Write(b)
		}
	}
}
