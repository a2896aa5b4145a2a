package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lodge_finder/internal/domain"
)

type BookmarkService struct {
	store *RecordStore
	relay *RelayService
	now   func() time.Time
}

func NewBookmarkService(s *RecordStore, r *RelayService) *BookmarkService {
	return &BookmarkService{store: s, relay: r, now: time.Now}
}

type BookmarkResult struct {
	Bookmarked bool   `json:"bookmarked"`
	Message    string `json:"message"`
	Demo       bool   `json:"demo,omitempty"`
}

// Add records the subscription, then asks the relay for the confirmation
// mail. A relay failure is reported but the bookmark stays.
func (s *BookmarkService) Add(ctx context.Context, lodgeID int64, email string) (BookmarkResult, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return BookmarkResult{}, domain.Invalid("email", "Please enter a valid email address.")
	}
	l, _, ok := findLodge(s.store.GetLodges(ctx), lodgeID)
	if !ok {
		return BookmarkResult{}, domain.ErrNotFound
	}

	err := s.store.UpdateBookmarks(ctx, func(bs []domain.Bookmark) ([]domain.Bookmark, error) {
		return append(bs, domain.Bookmark{LodgeID: lodgeID, Email: email, Date: s.now().UTC()}), nil
	})
	if err != nil {
		return BookmarkResult{}, err
	}

	res, err := s.relay.Subscribe(ctx, SubscribeRequest{
		Email:     email,
		LodgeName: l.Name,
		LodgeID:   domain.NewFlexNumber(float64(lodgeID)),
	})
	if err != nil {
		log.Warn().Err(err).Int64("lodge_id", lodgeID).Msg("bookmark saved, confirmation mail failed")
		return BookmarkResult{
			Bookmarked: true,
			Message:    "Lodge bookmarked! The confirmation email could not be sent.",
		}, nil
	}
	return BookmarkResult{
		Bookmarked: true,
		Message:    "Lodge bookmarked! You will receive alerts at " + email + ".",
		Demo:       res.Demo,
	}, nil
}

// Remove drops every bookmark for the lodge, whoever subscribed.
func (s *BookmarkService) Remove(ctx context.Context, lodgeID int64, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	return s.store.UpdateBookmarks(ctx, func(bs []domain.Bookmark) ([]domain.Bookmark, error) {
		out := make([]domain.Bookmark, 0, len(bs))
		for _, b := range bs {
			if b.LodgeID != lodgeID {
				out = append(out, b)
			}
		}
		if len(out) == len(bs) {
			return nil, errNoChange
		}
		return out, nil
	})
}

func (s *BookmarkService) Status(ctx context.Context, lodgeID int64) bool {
	return IsBookmarked(s.store.GetBookmarks(ctx), lodgeID)
}
