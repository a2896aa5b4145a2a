package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultSafety is the rating a lodge carries when none was recorded.
const DefaultSafety = 5.0

// DefaultImage is used for lodges created without an image.
const DefaultImage = "images/background.png"

type Lodge struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	Price       float64    `json:"price"` // USD, pre-discount
	Image       ImageRef   `json:"image"`
	Gallery     []ImageRef `json:"gallery"`
	Description string     `json:"description"`
	Amenities   []string   `json:"amenities"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Safety      float64    `json:"safety"`
	Discount    int        `json:"discount"` // percent
	Lat         *float64   `json:"lat,omitempty"`
	Lon         *float64   `json:"lon,omitempty"`
}

// Coords returns the lodge position, or nil when either coordinate is missing.
func (l Lodge) Coords() *Coords {
	if l.Lat == nil || l.Lon == nil {
		return nil
	}
	return &Coords{Lat: *l.Lat, Lon: *l.Lon}
}

// Normalize fills declared defaults. It runs once when records cross the
// repository boundary so callers never re-default fields themselves.
func (l *Lodge) Normalize() {
	if l.Gallery == nil {
		l.Gallery = []ImageRef{}
	}
	if l.Amenities == nil {
		l.Amenities = []string{}
	}
	// a stored 0 reads as unrated, same as a missing rating
	if l.Safety == 0 {
		l.Safety = DefaultSafety
	}
	if l.Discount < 0 {
		l.Discount = 0
	}
}

// UnmarshalJSON accepts the loose shapes older admin revisions persisted:
// numbers stored as strings, missing gallery/safety/discount, string ids.
func (l *Lodge) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID          FlexNumber `json:"id"`
		Name        string     `json:"name"`
		Location    string     `json:"location"`
		Price       FlexNumber `json:"price"`
		Image       ImageRef   `json:"image"`
		Gallery     []ImageRef `json:"gallery"`
		Description string     `json:"description"`
		Amenities   []string   `json:"amenities"`
		Email       string     `json:"email"`
		Phone       string     `json:"phone"`
		Safety      FlexNumber `json:"safety"`
		Discount    FlexNumber `json:"discount"`
		Lat         FlexNumber `json:"lat"`
		Lon         FlexNumber `json:"lon"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = Lodge{
		ID:          int64(raw.ID.Value()),
		Name:        raw.Name,
		Location:    raw.Location,
		Price:       raw.Price.Value(),
		Image:       raw.Image,
		Gallery:     raw.Gallery,
		Description: raw.Description,
		Amenities:   raw.Amenities,
		Email:       raw.Email,
		Phone:       raw.Phone,
		Safety:      raw.Safety.Value(),
		Discount:    int(raw.Discount.Value()),
		Lat:         raw.Lat.Ptr(),
		Lon:         raw.Lon.Ptr(),
	}
	l.Normalize()
	return nil
}

// FlexNumber decodes a JSON number, a numeric string ("8,5" included) or null.
type FlexNumber struct {
	v     float64
	valid bool
}

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*n = FlexNumber{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(str, ",", "."))
		if s == "" {
			*n = FlexNumber{}
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// unparseable values read as absent
		*n = FlexNumber{}
		return nil
	}
	*n = FlexNumber{v: f, valid: true}
	return nil
}

func (n FlexNumber) Value() float64 { return n.v }
func (n FlexNumber) Valid() bool    { return n.valid }

func (n FlexNumber) Ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.v
	return &v
}

func NewFlexNumber(v float64) FlexNumber { return FlexNumber{v: v, valid: true} }

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.v, 'f', -1, 64)), nil
}
