package document

import "encoding/json"

// PayloadFromCanonicalJSON reverses CanonicalJSON. The dispatcher and the
// dead-letter store persist payloads in canonical form so they can be
// replayed with an identical content hash.
func PayloadFromCanonicalJSON(raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, nil
	}

	var cp canonicalPayload
	if err := json.Unmarshal(raw, &cp); err != nil {
		return Payload{}, err
	}

	var meta map[string]string
	if len(cp.Metadata) > 0 {
		meta = make(map[string]string, len(cp.Metadata))
		for _, e := range cp.Metadata {
			meta[e.Key] = e.Value
		}
	}

	return NewPayload(cp.Title, cp.Body, cp.URL, cp.Language, meta), nil
}
