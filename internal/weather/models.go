package weather

import (
	"bytes"
	"encoding/json"
)

// Origin tells the caller where a snapshot came from.
type Origin string

const (
	OriginCache Origin = "cache"
	OriginFresh Origin = "fresh"
)

// Snapshot is the provider payload for a location. It is kept as raw JSON and
// passed through unmodified; only emptiness is ever inspected.
type Snapshot []byte

// MarshalJSON writes the payload verbatim.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(s)) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

// UnmarshalJSON keeps a copy of the raw payload.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	*s = append((*s)[:0], data...)
	return nil
}

// IsEmpty reports whether the payload carries no data: an empty body, a JSON
// null or an empty JSON array.
func (s Snapshot) IsEmpty() bool {
	trimmed := bytes.TrimSpace(s)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil && len(items) == 0 {
			return true
		}
	}
	return false
}

// LookupResult is returned by Service.Lookup.
type LookupResult struct {
	Snapshot Snapshot
	Origin   Origin
}

// Cached reports whether the snapshot was served from the cache store.
func (r LookupResult) Cached() bool {
	return r.Origin == OriginCache
}
