package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key returns the cache key for a (qualified tool, arguments) pair
// (spec.md §4.C: "keyed by (qualified_tool, canonical_args_hash)").
//
// Canonicalization relies on encoding/json's own behavior: map[string]any
// keys are always marshaled in sorted order, and numeric values that
// round-tripped through Go's json.Unmarshal are already float64, so two
// structurally-equal argument maps always marshal to byte-identical JSON
// regardless of the order they were built in (open question resolved in
// DESIGN.md).
func Key(qualifiedTool string, args map[string]any) (string, error) {
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return qualifiedTool + ":" + hex.EncodeToString(sum[:]), nil
}
