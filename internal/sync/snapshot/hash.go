// Package snapshot owns the canonical snapshot wire format: producing one
// from the local store, ingesting one transactionally, and computing the
// content hash used by the Comparator and the Engine to tell "same data"
// from "different data."
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// mutableMetadataKeys are stripped before hashing so that two snapshots
// with identical records produce the same content hash. Beyond the
// timestamps, every provenance field is excluded: those describe one
// device's relationship to the remote and are rewritten on every import,
// so a fingerprint that included them could never match across devices.
var mutableMetadataKeys = map[string]bool{
	"export_time":      true,
	"import_time":      true,
	"sync_time":        true,
	"last_sync_time":   true,
	"merged_at":        true,
	"merge_sources":    true,
	"base_remote_hash": true,
	"is_fresh_install": true,
	"backup_type":      true,
}

// ContentHash computes the deterministic fingerprint of a snapshot: the
// mutable metadata fields are stripped, the remainder is re-marshaled with
// sorted object keys (canonical JSON), and the result is SHA-256 hashed.
func ContentHash(raw []byte) (string, error) {
	canonical, err := canonicalize(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize strips mutable metadata and re-marshals the payload with
// object keys sorted at every level, so identical data always produces
// byte-identical output regardless of map iteration order or field order
// in the source JSON.
func canonicalize(raw []byte) ([]byte, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	stripped := stripMutableMetadata(generic)

	var buf []byte
	buf = appendCanonical(buf, stripped)
	return buf, nil
}

func stripMutableMetadata(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		if mutableMetadataKeys[k] {
			continue
		}
		out[k] = val
	}
	return out
}

// appendCanonical serializes v with sorted object keys, recursing into
// nested objects and arrays. Numbers, strings, bools, and null are
// serialized with the standard library's encoder, which is stable for
// scalar values.
func appendCanonical(buf []byte, v interface{}) []byte {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, _ := json.Marshal(k)
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			buf = appendCanonical(buf, val[k])
		}
		buf = append(buf, '}')
		return buf
	case []interface{}:
		buf = append(buf, '[')
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, item)
		}
		buf = append(buf, ']')
		return buf
	default:
		scalar, _ := json.Marshal(val)
		return append(buf, scalar...)
	}
}
