package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Lllllllleong/listingflow/internal/models"
)

// Record is a parsed source document: always a JSON object.
type Record map[string]any

var errNotObject = errors.New("document is not a JSON object")

// Parse strictly decodes body into a Record. Empty bodies and malformed JSON
// fail with distinct causes; nothing is coerced.
func Parse(src models.Descriptor, body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Source: src, Err: ErrEmptyBody}
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, &ParseError{Source: src, Err: err}
	}
	// "null" decodes into a nil map without error.
	if rec == nil {
		return nil, &ParseError{Source: src, Err: errNotObject}
	}
	return rec, nil
}
