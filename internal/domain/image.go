package domain

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

type ImageKind string

const (
	ImageNone     ImageKind = ""
	ImageEmbedded ImageKind = "embedded"
	ImageRemote   ImageKind = "remote"
	ImageLocal    ImageKind = "local"
)

// ImageRef is a lodge picture: embedded bytes, a remote URL or a static asset
// path relative to the site root. The kind is decided once, at parse time.
type ImageRef struct {
	Kind ImageKind

	// Embedded
	MIME   string
	Data   []byte
	base64 bool

	// Remote (URL) or LocalAsset (site-relative path)
	Location string
}

func Embedded(mime string, data []byte) ImageRef {
	return ImageRef{Kind: ImageEmbedded, MIME: mime, Data: data, base64: true}
}

func Remote(url string) ImageRef { return ImageRef{Kind: ImageRemote, Location: url} }

func LocalAsset(path string) ImageRef { return ImageRef{Kind: ImageLocal, Location: path} }

// ParseImageRef classifies by prefix: "data:" embedded, "http" remote, else local.
func ParseImageRef(s string) ImageRef {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ImageRef{}
	case strings.HasPrefix(s, "data:"):
		return parseDataURI(s)
	case strings.HasPrefix(s, "http"):
		return Remote(s)
	default:
		return LocalAsset(s)
	}
}

func parseDataURI(s string) ImageRef {
	meta, payload, _ := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	mime, isB64 := strings.CutSuffix(meta, ";base64")
	if isB64 {
		if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return ImageRef{Kind: ImageEmbedded, MIME: mime, Data: data, base64: true}
		}
	}
	return ImageRef{Kind: ImageEmbedded, MIME: meta, Data: []byte(payload)}
}

func (r ImageRef) IsZero() bool { return r.Kind == ImageNone }

// String renders the persisted form (data URI, URL or path).
func (r ImageRef) String() string {
	switch r.Kind {
	case ImageEmbedded:
		if r.base64 {
			return "data:" + r.MIME + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
		}
		return "data:" + r.MIME + "," + string(r.Data)
	case ImageRemote, ImageLocal:
		return r.Location
	}
	return ""
}

// AdminSrc resolves local assets against the admin dashboard, which lives one
// directory below the site root.
func (r ImageRef) AdminSrc() string {
	if r.Kind == ImageLocal {
		return "../" + r.Location
	}
	return r.String()
}

func (r ImageRef) View() ImageView { return ImageView{Kind: r.Kind, Src: r.String()} }

func (r ImageRef) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*r = ImageRef{}
		return nil
	}
	*r = ParseImageRef(*s)
	return nil
}
