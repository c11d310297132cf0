package gateway

import (
	"encoding/json"
	"fmt"
)

// The backend has historically answered collection requests in three
// envelopes: a bare JSON array, {"items": [...]} and {"data": ...} (with
// the data member itself in either of the first two forms). Everything is
// normalized here into the canonical types; callers never see the envelope.

// envelope captures the known wrapper shapes
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Items json.RawMessage `json:"items"`
}

// unwrapCollection reduces a response body to the raw JSON array holding
// the collection, whatever envelope it arrived in.
func unwrapCollection(body []byte) (json.RawMessage, error) {
	raw := json.RawMessage(body)

	for depth := 0; depth < 3; depth++ {
		trimmed := trimSpace(raw)
		if len(trimmed) == 0 || string(trimmed) == "null" {
			return json.RawMessage("[]"), nil
		}
		if trimmed[0] == '[' {
			return trimmed, nil
		}
		if trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: unexpected payload shape", ErrInvalidResponse)
		}

		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		switch {
		case len(env.Items) > 0:
			raw = env.Items
		case len(env.Data) > 0:
			raw = env.Data
		default:
			// An object with neither member is an empty collection
			return json.RawMessage("[]"), nil
		}
	}

	return nil, fmt.Errorf("%w: envelope nesting too deep", ErrInvalidResponse)
}

func trimSpace(raw json.RawMessage) json.RawMessage {
	start := 0
	for start < len(raw) && isSpace(raw[start]) {
		start++
	}
	end := len(raw)
	for end > start && isSpace(raw[end-1]) {
		end--
	}
	return raw[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// decodeCartSnapshot normalizes a cart response body
func decodeCartSnapshot(body []byte) (*CartSnapshot, error) {
	collection, err := unwrapCollection(body)
	if err != nil {
		return nil, err
	}

	var lines []CartLine
	if err := json.Unmarshal(collection, &lines); err != nil {
		return nil, fmt.Errorf("%w: failed to parse cart lines: %v", ErrInvalidResponse, err)
	}
	return &CartSnapshot{Lines: lines}, nil
}

// decodeFavorites normalizes a favorites response body
func decodeFavorites(body []byte) ([]FavoriteEntry, error) {
	collection, err := unwrapCollection(body)
	if err != nil {
		return nil, err
	}

	var entries []FavoriteEntry
	if err := json.Unmarshal(collection, &entries); err != nil {
		return nil, fmt.Errorf("%w: failed to parse favorites: %v", ErrInvalidResponse, err)
	}
	return entries, nil
}
