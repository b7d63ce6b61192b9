// Package backend decodes configuration payloads pushed by the backend and
// keeps the local lists in step with them on a schedule.
package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/runnerr0/listkeeper/internal/storage"
)

// ErrMalformedPayload is returned when the payload is not a JSON object.
var ErrMalformedPayload = errors.New("malformed backend payload")

// Candidate is one backend-supplied entry. The pattern travels under the
// "domain" key whatever its type.
type Candidate struct {
	Pattern     string            `json:"domain"`
	PatternType string            `json:"patternType"`
	Metadata    *storage.Metadata `json:"metadata,omitempty"`
}

// Payload maps list names to their backend candidates.
type Payload struct {
	Lists map[string][]Candidate

	// Warnings describes values that were skipped while decoding.
	Warnings []string
}

// Names returns the list names in sorted order.
func (p *Payload) Names() []string {
	names := make([]string, 0, len(p.Lists))
	for n := range p.Lists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DecodePayload parses a backend payload. Lists whose value is not an array
// and array elements that are not candidate objects are skipped with a
// warning.
func DecodePayload(data []byte) (*Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrMalformedPayload)
	}

	p := &Payload{Lists: make(map[string][]Candidate, len(raw))}
	for _, name := range sortedKeys(raw) {
		value := bytes.TrimSpace(raw[name])
		if len(value) == 0 || value[0] != '[' {
			p.Warnings = append(p.Warnings, fmt.Sprintf("list %q: value is not an array, skipped", name))
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("list %q: %v, skipped", name, err))
			continue
		}

		candidates := make([]Candidate, 0, len(items))
		for i, item := range items {
			var c Candidate
			if err := json.Unmarshal(item, &c); err != nil {
				p.Warnings = append(p.Warnings, fmt.Sprintf("list %q item %d: %v, skipped", name, i, err))
				continue
			}
			candidates = append(candidates, c)
		}
		p.Lists[name] = candidates
	}

	return p, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
