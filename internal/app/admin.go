package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lodge_finder/internal/domain"
)

// LodgeForm is one admin submission. Nil fields were not submitted and keep
// their stored value on update.
type LodgeForm struct {
	ID *int64

	Name        *string
	Location    *string
	Price       *string
	Description *string
	Amenities   *string // comma separated
	Email       *string
	Phone       *string
	Safety      *string
	Discount    *string
	Lat         *string
	Lon         *string

	Image   *ImageInput
	Gallery []ImageInput // non-empty replaces the stored gallery
}

// ImageInput is either a reference string (URL, path, data URI) or an
// uploaded file opened through Open.
type ImageInput struct {
	Ref         string
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// ImageEncoder turns an input into a stored reference.
type ImageEncoder func(ctx context.Context, in ImageInput) (domain.ImageRef, error)

// EncodeImage reads uploads fully and embeds them as data URIs.
func EncodeImage(ctx context.Context, in ImageInput) (domain.ImageRef, error) {
	if in.Open == nil {
		ref := domain.ParseImageRef(in.Ref)
		if ref.IsZero() {
			return ref, domain.Invalid("image", "empty image reference")
		}
		return ref, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.ImageRef{}, err
	}
	rc, err := in.Open()
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("open %s: %w", in.Filename, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("read %s: %w", in.Filename, err)
	}
	if len(data) == 0 {
		return domain.ImageRef{}, domain.Invalid("image", in.Filename+" is empty")
	}
	mime := in.ContentType
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return domain.Embedded(mime, data), nil
}

type AdminService struct {
	store  *RecordStore
	relay  *RelayService
	encode ImageEncoder
}

func NewAdminService(s *RecordStore, r *RelayService) *AdminService {
	return &AdminService{store: s, relay: r, encode: EncodeImage}
}

// WithEncoder swaps the image encoder.
func (s *AdminService) WithEncoder(e ImageEncoder) *AdminService {
	s.encode = e
	return s
}

type captured struct {
	image   *domain.ImageRef
	gallery []domain.ImageRef
}

// capture encodes every image before the store is touched. Gallery items
// convert in parallel, keep input order, and the first failure aborts.
func (s *AdminService) capture(ctx context.Context, f LodgeForm) (captured, error) {
	var c captured
	if f.Image != nil {
		ref, err := s.encode(ctx, *f.Image)
		if err != nil {
			return c, fmt.Errorf("image: %w", err)
		}
		c.image = &ref
	}
	if len(f.Gallery) == 0 {
		return c, nil
	}

	out := make([]domain.ImageRef, len(f.Gallery))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range f.Gallery {
		g.Go(func() error {
			ref, err := s.encode(gctx, in)
			if err != nil {
				return fmt.Errorf("gallery[%d]: %w", i, err)
			}
			out[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return captured{}, err
	}
	c.gallery = out
	return c, nil
}

// CreateOrUpdate appends a new lodge with the next id when f.ID is nil and
// merges into the stored lodge otherwise. Editing an id that is gone leaves
// the collection untouched and reports ErrNotFound.
func (s *AdminService) CreateOrUpdate(ctx context.Context, f LodgeForm) (domain.Lodge, error) {
	imgs, err := s.capture(ctx, f)
	if err != nil {
		return domain.Lodge{}, err
	}

	var (
		saved   domain.Lodge
		missing bool
	)
	err = s.store.UpdateLodges(ctx, func(all []domain.Lodge) ([]domain.Lodge, error) {
		if f.ID != nil {
			cur, i, ok := findLodge(all, *f.ID)
			if !ok {
				missing = true
				return nil, errNoChange
			}
			l, err := merge(cur, f, imgs)
			if err != nil {
				return nil, err
			}
			all[i] = l
			saved = l
			return all, nil
		}
		l, err := build(f, imgs)
		if err != nil {
			return nil, err
		}
		l.ID = nextID(all)
		saved = l
		return append(all, l), nil
	})
	if err != nil {
		return domain.Lodge{}, err
	}
	if missing {
		return domain.Lodge{}, fmt.Errorf("lodge %d: %w", *f.ID, domain.ErrNotFound)
	}
	log.Info().Int64("lodge_id", saved.ID).Str("name", saved.Name).Msg("lodge saved")
	return saved, nil
}

func nextID(all []domain.Lodge) int64 {
	var top int64
	for _, l := range all {
		if l.ID > top {
			top = l.ID
		}
	}
	return top + 1
}

func build(f LodgeForm, imgs captured) (domain.Lodge, error) {
	if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
		return domain.Lodge{}, domain.Invalid("name", "required")
	}
	if f.Location == nil || strings.TrimSpace(*f.Location) == "" {
		return domain.Lodge{}, domain.Invalid("location", "required")
	}
	if f.Price == nil {
		return domain.Lodge{}, domain.Invalid("price", "required")
	}
	l := domain.Lodge{
		Image:   domain.LocalAsset(domain.DefaultImage),
		Safety:  domain.DefaultSafety,
		Gallery: []domain.ImageRef{},
	}
	l, err := merge(l, f, imgs)
	if err != nil {
		return domain.Lodge{}, err
	}
	return l, nil
}

// merge applies every submitted field to l. Text numbers fall back to
// their defaults when they do not parse; price is the exception.
func merge(l domain.Lodge, f LodgeForm, imgs captured) (domain.Lodge, error) {
	if f.Name != nil {
		v := strings.TrimSpace(*f.Name)
		if v == "" {
			return l, domain.Invalid("name", "required")
		}
		l.Name = v
	}
	if f.Location != nil {
		v := strings.TrimSpace(*f.Location)
		if v == "" {
			return l, domain.Invalid("location", "required")
		}
		l.Location = v
	}
	if f.Price != nil {
		p, ok := parseFlexFloat(*f.Price)
		if !ok {
			return l, domain.Invalid("price", "must be a number")
		}
		if p < 0 {
			return l, domain.Invalid("price", "must not be negative")
		}
		l.Price = p
	}
	if f.Description != nil {
		l.Description = strings.TrimSpace(*f.Description)
	}
	if f.Amenities != nil {
		l.Amenities = parseAmenities(*f.Amenities)
	}
	if f.Email != nil {
		l.Email = strings.TrimSpace(*f.Email)
	}
	if f.Phone != nil {
		l.Phone = strings.TrimSpace(*f.Phone)
	}
	if f.Safety != nil {
		l.Safety = domain.DefaultSafety
		if v, ok := parseFlexFloat(*f.Safety); ok && v > 0 {
			l.Safety = v
		}
	}
	if f.Discount != nil {
		d, _ := parseFlexInt(*f.Discount)
		l.Discount = min(max(d, 0), 100)
	}
	if f.Lat != nil {
		l.Lat = nil
		if v, ok := parseFlexFloat(*f.Lat); ok {
			l.Lat = &v
		}
	}
	if f.Lon != nil {
		l.Lon = nil
		if v, ok := parseFlexFloat(*f.Lon); ok {
			l.Lon = &v
		}
	}
	if imgs.image != nil {
		l.Image = *imgs.image
	}
	if imgs.gallery != nil {
		l.Gallery = imgs.gallery
	}
	l.Normalize()
	return l, nil
}

// Delete removes the lodge with id. A missing id is a no-op; bookmarks for
// the lodge are left as they are.
func (s *AdminService) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	removed := false
	err := s.store.UpdateLodges(ctx, func(all []domain.Lodge) ([]domain.Lodge, error) {
		_, i, ok := findLodge(all, id)
		if !ok {
			return nil, errNoChange
		}
		removed = true
		return append(all[:i:i], all[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	if removed {
		log.Info().Int64("lodge_id", id).Msg("lodge deleted")
	}
	return nil
}

type AdminList struct {
	Total int               `json:"total"`
	Rows  []domain.AdminRow `json:"rows"`
}

func (s *AdminService) List(ctx context.Context) AdminList {
	all := s.store.GetLodges(ctx)
	out := AdminList{Total: len(all), Rows: make([]domain.AdminRow, 0, len(all))}
	for _, l := range all {
		out.Rows = append(out.Rows, domain.AdminRow{
			ID:       l.ID,
			Name:     l.Name,
			Location: l.Location,
			Price:    l.Price,
			Thumb:    l.Image.AdminSrc(),
		})
	}
	return out
}

// Get returns the stored record for the edit form.
func (s *AdminService) Get(ctx context.Context, id int64) (domain.Lodge, error) {
	l, _, ok := findLodge(s.store.GetLodges(ctx), id)
	if !ok {
		return domain.Lodge{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *AdminService) Subscribers(ctx context.Context, id int64) ([]domain.Subscriber, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return SubscribersOf(s.store.GetBookmarks(ctx), id), nil
}

// BroadcastToSubscribers mails every bookmark email of the lodge. An address
// bookmarked twice is mailed twice.
func (s *AdminService) BroadcastToSubscribers(ctx context.Context, id int64, subject, message string) (RelayResult, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return RelayResult{}, err
	}
	subs := SubscribersOf(s.store.GetBookmarks(ctx), id)
	emails := make([]string, 0, len(subs))
	for _, sub := range subs {
		emails = append(emails, sub.Email)
	}
	return s.relay.Broadcast(ctx, BroadcastRequest{
		Emails:    emails,
		Subject:   subject,
		Message:   message,
		LodgeName: l.Name,
	})
}
