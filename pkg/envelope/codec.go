package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DuplicateIDError reports a collection containing the same id twice.
//
// Duplicate ids are invalid input, not a condition to resolve: two
// requesters could otherwise read each other's replies. The decoder
// rejects the whole collection before any processing happens.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate envelope id %q in collection", e.ID)
}

// Decode parses the literal mailbox file content.
//
// The input must be a JSON array of envelopes; `[]` is the empty
// collection. Collections with duplicate ids are rejected with a
// *DuplicateIDError. The decoder is strict about unknown shapes but not
// about unknown fields, so producers may carry extra metadata.
func Decode(raw []byte) (Collection, error) {
	var c Collection
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode mailbox content: %w", err)
	}
	if c == nil {
		c = Collection{}
	}
	if err := validateUniqueIDs(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode serializes a collection back to mailbox file content.
// A nil collection encodes as `[]`, never `null`: the mailbox file always
// holds an array.
func Encode(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	out, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode mailbox content: %w", err)
	}
	return out, nil
}

// DecodeBase64 unwraps the base64 framing the content API puts around the
// mailbox body and parses the result. Content endpoints return file bodies
// base64-encoded; this is the single place that framing is removed.
func DecodeBase64(content string) (Collection, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("decode base64 mailbox content: %w", err)
	}
	return Decode(raw)
}

// EncodeBase64 serializes a collection and applies the base64 framing the
// content API expects on writes.
func EncodeBase64(c Collection) (string, error) {
	raw, err := Encode(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// validateUniqueIDs rejects collections where two live envelopes share an
// id. First duplicate wins the error message.
func validateUniqueIDs(c Collection) error {
	seen := make(map[string]struct{}, len(c))
	for _, e := range c {
		if _, dup := seen[e.Head.ID]; dup {
			return &DuplicateIDError{ID: e.Head.ID}
		}
		seen[e.Head.ID] = struct{}{}
	}
	return nil
}
