package domain

import (
	"context"
	"time"
)

// KVStore is the persisted key-value area holding the serialized collections.
type KVStore interface {
	// Get reports ok=false when the key has never been written.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

type LodgeRepository interface {
	GetLodges(ctx context.Context) []Lodge
	SaveLodges(ctx context.Context, ls []Lodge) error
}

type BookmarkRepository interface {
	GetBookmarks(ctx context.Context) []Bookmark
	SaveBookmarks(ctx context.Context, bs []Bookmark) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Mailer delivers one rendered message. Configured reports whether
// credentials exist; unconfigured relays answer in demo mode.
type Mailer interface {
	Configured() bool
	Send(ctx context.Context, m Message) error
}

type Message struct {
	Kind    string // contact|subscribe|notify|broadcast, used for metrics
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

// Locator maps a client IP to coordinates.
type Locator interface {
	Locate(ctx context.Context, ip string) (Coords, error)
}

// Read models
type LodgeView struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	Description string      `json:"description"`
	Image       ImageView   `json:"image"`
	Gallery     []ImageView `json:"gallery"`
	Amenities   []string    `json:"amenities"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Safety      float64     `json:"safety"`
	Price       PriceView   `json:"price"`
	Map         *Coords     `json:"map"` // nil hides the map
	Bookmarked  bool        `json:"bookmarked"`
}

type ImageView struct {
	Kind ImageKind `json:"kind"`
	Src  string    `json:"src"`
}

// PriceView keeps the USD amount and discount next to the converted figures
// so a client can re-convert without asking for the lodge again.
type PriceView struct {
	USD      float64 `json:"usd"`
	Discount int     `json:"discount"`
	Currency string  `json:"currency"`
	Symbol   string  `json:"symbol"`
	Original float64 `json:"original"`
	Amount   float64 `json:"amount"`
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AdminRow is one line of the dashboard table.
type AdminRow struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Price    float64 `json:"price"`
	Thumb    string  `json:"thumb"`
}

type Subscriber struct {
	Email string    `json:"email"`
	Since time.Time `json:"since"`
}
