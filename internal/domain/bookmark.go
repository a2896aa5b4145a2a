package domain

import (
	"encoding/json"
	"time"
)

// Bookmark is one subscriber's opt-in to updates for a lodge. The same
// email may subscribe to the same lodge more than once.
type Bookmark struct {
	LodgeID int64     `json:"id"`
	Email   string    `json:"email"`
	Date    time.Time `json:"date"`
}

func (b *Bookmark) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    FlexNumber `json:"id"` // the browser stored ids as strings
		Email string     `json:"email"`
		Date  time.Time  `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Bookmark{LodgeID: int64(raw.ID.Value()), Email: raw.Email, Date: raw.Date}
	return nil
}
