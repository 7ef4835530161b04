// Package cache memoizes model-backed extraction results. Re-running a
// case against the same backend and model is common during packet review;
// the note text fully determines the input, so a content hash is a safe key.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrace/patrace/internal/model"
)

// Cache stores extraction results keyed by note content
type Cache interface {
	Get(key string) ([]model.ExtractedFact, bool)
	Set(key string, facts []model.ExtractedFact, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ExtractionKey generates a cache key for one (note, backend, model) input
func ExtractionKey(noteText, backend, modelName string) string {
	hash := sha256.Sum256([]byte(noteText + "\x00" + backend + "\x00" + modelName))
	return "patrace:v1:" + hex.EncodeToString(hash[:])
}
