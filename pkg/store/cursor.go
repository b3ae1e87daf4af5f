package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is a restartable position inside a conversation listing. A nil
// cursor re-reads from the start; the cursor returned alongside a page
// resumes strictly after the last message of that page.
type Cursor struct {
	TS  int64  `json:"ts"`
	Seq uint64 `json:"seq"`
}

// Encode returns the opaque wire form of the cursor.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	b, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeCursor parses the opaque wire form. Empty input yields a nil cursor.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return &c, nil
}
