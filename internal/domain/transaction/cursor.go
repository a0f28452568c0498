package transaction

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Cursor is the position after the last item of a page: list order is
// (timestamp, id), so both are needed to resume without gaps.
type Cursor struct {
	Timestamp int64  `json:"t"`
	ID        string `json:"id"`
}

func CursorAfter(tx *Transaction) Cursor {
	return Cursor{Timestamp: tx.Timestamp.UnixMilli(), ID: tx.ID}
}

// Encode returns the opaque continuation token for c.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a continuation token, returning ErrInvalidPageToken
// for anything Encode could not have produced.
func DecodeCursor(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidPageToken
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" {
		return Cursor{}, ErrInvalidPageToken
	}
	return c, nil
}

// Less orders transactions the way pages are cut.
func Less(a, b *Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// After reports whether tx sorts strictly after c.
func (c Cursor) After(tx *Transaction) bool {
	ms := tx.Timestamp.UnixMilli()
	if ms != c.Timestamp {
		return ms > c.Timestamp
	}
	return tx.ID > c.ID
}

func (c Cursor) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}
