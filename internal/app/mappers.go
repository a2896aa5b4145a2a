package app

import (
	"strconv"
	"strings"
)

/********** alias registry for imported records **********/

// lodgeAliases lists the keys older exports and third-party feeds used for
// each lodge field, first match wins.
var lodgeAliases = map[string][]string{
	"id":          {"id", "lodge_id", "lodgeId"},
	"name":        {"name", "title", "lodge_name"},
	"location":    {"location", "address.city", "city", "region"},
	"price":       {"price", "price_usd", "rate", "nightly_rate"},
	"image":       {"image", "thumbnail", "cover", "photo"},
	"gallery":     {"gallery", "images", "photos"},
	"description": {"description", "summary", "about"},
	"amenities":   {"amenities", "facilities", "features"},
	"email":       {"email", "contact.email"},
	"phone":       {"phone", "contact.phone", "telephone"},
	"safety":      {"safety", "safety_rating", "rating.safety"},
	"discount":    {"discount", "discount_percent"},
	"lat":         {"lat", "latitude", "location.lat", "coords.lat"},
	"lon":         {"lon", "lng", "longitude", "location.lon", "coords.lon"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstText returns the first alias present as text, numbers rendered back
// to their decimal form. Present-but-empty values count.
func firstText(m map[string]any, key string) *string {
	for _, p := range lodgeAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case string:
			s := v
			return &s
		case float64:
			s := strconv.FormatFloat(v, 'f', -1, 64)
			return &s
		case []any:
			// amenities arrays become the comma form the admin form uses
			parts := make([]string, 0, len(v))
			for _, it := range v {
				if s, ok := it.(string); ok {
					parts = append(parts, s)
				}
			}
			s := strings.Join(parts, ", ")
			return &s
		}
	}
	return nil
}

// firstSliceStrings: accept []any with either strings or {url/src}.
func firstSliceStrings(m map[string]any, key string) []string {
	for _, k := range lodgeAliases[key] {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case map[string]any:
				if u, ok := t["url"].(string); ok && u != "" {
					out = append(out, u)
					continue
				}
				if u, ok := t["src"].(string); ok && u != "" {
					out = append(out, u)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// parseFlexFloat: "8,5" and " 8.5 " both parse; empty or junk does not.
func parseFlexFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseFlexInt truncates like parseInt in a browser form ("12.7" is 12).
func parseFlexInt(s string) (int, bool) {
	f, ok := parseFlexFloat(s)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// parseAmenities splits comma-separated input, trimming and dropping blanks.
func parseAmenities(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, ",") {
		if t := strings.TrimSpace(a); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

/********** record mapper **********/

// MapLodgeRecord turns one loosely shaped JSON object into an admin form.
// Fields absent from the record stay nil so updates keep the stored value.
func MapLodgeRecord(m map[string]any) LodgeForm {
	f := LodgeForm{
		Name:        firstText(m, "name"),
		Location:    firstText(m, "location"),
		Price:       firstText(m, "price"),
		Description: firstText(m, "description"),
		Amenities:   firstText(m, "amenities"),
		Email:       firstText(m, "email"),
		Phone:       firstText(m, "phone"),
		Safety:      firstText(m, "safety"),
		Discount:    firstText(m, "discount"),
		Lat:         firstText(m, "lat"),
		Lon:         firstText(m, "lon"),
	}
	if s := firstText(m, "id"); s != nil {
		if n, ok := parseFlexInt(*s); ok && n > 0 {
			id := int64(n)
			f.ID = &id
		}
	}
	if s := firstText(m, "image"); s != nil && strings.TrimSpace(*s) != "" {
		f.Image = &ImageInput{Ref: *s}
	}
	for _, g := range firstSliceStrings(m, "gallery") {
		f.Gallery = append(f.Gallery, ImageInput{Ref: g})
	}
	return f
}
