package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
)

const maxUploadBody = 32 << 20

// textField accepts a JSON string or number and remembers whether it was sent.
type textField struct {
	v   string
	set bool
}

func (t *textField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	t.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &t.v)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	t.v = n.String()
	return nil
}

func (t textField) ptr() *string {
	if !t.set {
		return nil
	}
	v := t.v
	return &v
}

type lodgeJSON struct {
	Name        textField `json:"name"`
	Location    textField `json:"location"`
	Price       textField `json:"price"`
	Description textField `json:"description"`
	Amenities   textField `json:"amenities"`
	Email       textField `json:"email"`
	Phone       textField `json:"phone"`
	Safety      textField `json:"safety"`
	Discount    textField `json:"discount"`
	Lat         textField `json:"lat"`
	Lon         textField `json:"lon"`
	Image       string    `json:"image"`
	Gallery     []string  `json:"gallery"`
}

// decodeLodgeForm reads a JSON body or a multipart form with optional
// "image" and "gallery" file parts. The id comes from the path, if any.
func decodeLodgeForm(r *http.Request, id *int64) (app.LodgeForm, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		return decodeMultipart(r, id)
	}

	var in lodgeJSON
	if err := decodeJSON(r, &in); err != nil {
		return app.LodgeForm{}, err
	}
	f := app.LodgeForm{
		ID:          id,
		Name:        in.Name.ptr(),
		Location:    in.Location.ptr(),
		Price:       in.Price.ptr(),
		Description: in.Description.ptr(),
		Amenities:   in.Amenities.ptr(),
		Email:       in.Email.ptr(),
		Phone:       in.Phone.ptr(),
		Safety:      in.Safety.ptr(),
		Discount:    in.Discount.ptr(),
		Lat:         in.Lat.ptr(),
		Lon:         in.Lon.ptr(),
	}
	if strings.TrimSpace(in.Image) != "" {
		f.Image = &app.ImageInput{Ref: in.Image}
	}
	for _, g := range in.Gallery {
		if strings.TrimSpace(g) != "" {
			f.Gallery = append(f.Gallery, app.ImageInput{Ref: g})
		}
	}
	return f, nil
}

func decodeMultipart(r *http.Request, id *int64) (app.LodgeForm, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return app.LodgeForm{}, domain.Invalid("body", "upload too large")
		}
		return app.LodgeForm{}, domain.Invalid("body", "malformed multipart form")
	}
	mf := r.MultipartForm
	val := func(k string) *string {
		vs, ok := mf.Value[k]
		if !ok || len(vs) == 0 {
			return nil
		}
		v := vs[0]
		return &v
	}
	f := app.LodgeForm{
		ID:          id,
		Name:        val("name"),
		Location:    val("location"),
		Price:       val("price"),
		Description: val("description"),
		Amenities:   val("amenities"),
		Email:       val("email"),
		Phone:       val("phone"),
		Safety:      val("safety"),
		Discount:    val("discount"),
		Lat:         val("lat"),
		Lon:         val("lon"),
	}

	if fhs := mf.File["image"]; len(fhs) > 0 {
		in := fileInput(fhs[0])
		f.Image = &in
	} else if ref := val("image"); ref != nil && strings.TrimSpace(*ref) != "" {
		f.Image = &app.ImageInput{Ref: *ref}
	}
	for _, fh := range mf.File["gallery"] {
		f.Gallery = append(f.Gallery, fileInput(fh))
	}
	return f, nil
}

func fileInput(fh *multipart.FileHeader) app.ImageInput {
	return app.ImageInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
