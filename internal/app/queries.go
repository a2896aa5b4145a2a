package app

import (
	"context"
	"math"
	"strings"

	"lodge_finder/internal/domain"
)

type PriceRange string

const (
	PriceAny      PriceRange = ""
	PriceUpTo100  PriceRange = "0-100"
	Price100To300 PriceRange = "100-300"
	Price300To500 PriceRange = "300-500"
	PriceOver500  PriceRange = "500+"
)

// ParsePriceRange rejects labels outside the four fixed buckets.
func ParsePriceRange(s string) (PriceRange, error) {
	switch r := PriceRange(strings.TrimSpace(s)); r {
	case PriceAny, PriceUpTo100, Price100To300, Price300To500, PriceOver500:
		return r, nil
	}
	return PriceAny, domain.Invalid("price", "unknown price range "+s)
}

// Contains matches the pre-discount price. Lower bounds are exclusive.
func (r PriceRange) Contains(p float64) bool {
	switch r {
	case PriceUpTo100:
		return p <= 100
	case Price100To300:
		return p > 100 && p <= 300
	case Price300To500:
		return p > 300 && p <= 500
	case PriceOver500:
		return p > 500
	}
	return true
}

type Filters struct {
	Name     string
	Location string
	Price    PriceRange
}

// FilterLodges keeps collection order; empty filters impose nothing.
func FilterLodges(all []domain.Lodge, f Filters) []domain.Lodge {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	loc := strings.ToLower(strings.TrimSpace(f.Location))
	if name == "" && loc == "" && f.Price == PriceAny {
		return all
	}
	out := make([]domain.Lodge, 0, len(all))
	for _, l := range all {
		if name != "" && !strings.Contains(strings.ToLower(l.Name), name) {
			continue
		}
		if loc != "" && !strings.Contains(strings.ToLower(l.Location), loc) {
			continue
		}
		if !f.Price.Contains(l.Price) {
			continue
		}
		out = append(out, l)
	}
	return out
}

const showcaseSize = 3

// Featured is the first three lodges in store order.
func Featured(all []domain.Lodge) []domain.Lodge {
	n := min(showcaseSize, len(all))
	return append([]domain.Lodge{}, all[:n]...)
}

// Nearby is the last three lodges, most recent first.
func Nearby(all []domain.Lodge) []domain.Lodge {
	n := min(showcaseSize, len(all))
	out := make([]domain.Lodge, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out
}

func EffectivePrice(l domain.Lodge) float64 {
	if l.Discount > 0 {
		return math.Round(l.Price * (1 - float64(l.Discount)/100))
	}
	return l.Price
}

func IsBookmarked(bs []domain.Bookmark, id int64) bool {
	for _, b := range bs {
		if b.LodgeID == id {
			return true
		}
	}
	return false
}

// SubscribersOf returns every bookmark email for id, duplicates included.
func SubscribersOf(bs []domain.Bookmark, id int64) []domain.Subscriber {
	out := []domain.Subscriber{}
	for _, b := range bs {
		if b.LodgeID == id {
			out = append(out, domain.Subscriber{Email: b.Email, Since: b.Date})
		}
	}
	return out
}

func findLodge(all []domain.Lodge, id int64) (domain.Lodge, int, bool) {
	for i, l := range all {
		if l.ID == id {
			return l, i, true
		}
	}
	return domain.Lodge{}, -1, false
}

/********** query service **********/

type QueryService struct {
	lodges    domain.LodgeRepository
	bookmarks domain.BookmarkRepository
	locator   domain.Locator
	policy    CurrencyPolicy
}

// NewQueryService wires the read side. locator may be nil.
func NewQueryService(l domain.LodgeRepository, b domain.BookmarkRepository, loc domain.Locator, p CurrencyPolicy) *QueryService {
	return &QueryService{lodges: l, bookmarks: b, locator: loc, policy: p}
}

// Where is what a request knows about its origin.
type Where struct {
	Coords *domain.Coords
	IP     string
}

type Listing struct {
	Title    string             `json:"title,omitempty"`
	Currency domain.Currency    `json:"currency"`
	Total    int                `json:"total"`
	Items    []domain.LodgeView `json:"items"`
}

func (s *QueryService) Search(ctx context.Context, f Filters, w Where) Listing {
	cur := s.ResolveCurrency(ctx, w)
	items := FilterLodges(s.lodges.GetLodges(ctx), f)
	return s.listing(ctx, "", cur, items)
}

func (s *QueryService) Featured(ctx context.Context, w Where) Listing {
	return s.listing(ctx, "Featured Destinations", s.ResolveCurrency(ctx, w), Featured(s.lodges.GetLodges(ctx)))
}

// Nearby uses "Lodges Near You" when the request could be located and
// falls back to the featured heading otherwise.
func (s *QueryService) Nearby(ctx context.Context, w Where) Listing {
	r := s.resolver(ctx, w)
	title := "Featured Destinations"
	if r.Located() {
		title = "Lodges Near You"
	}
	return s.listing(ctx, title, r.Currency(), Nearby(s.lodges.GetLodges(ctx)))
}

func (s *QueryService) GetLodge(ctx context.Context, id int64, w Where) (domain.LodgeView, domain.Currency, error) {
	l, _, ok := findLodge(s.lodges.GetLodges(ctx), id)
	if !ok {
		return domain.LodgeView{}, domain.USD, domain.ErrNotFound
	}
	cur := s.ResolveCurrency(ctx, w)
	return toView(l, cur, IsBookmarked(s.bookmarks.GetBookmarks(ctx), id)), cur, nil
}

// ResolveCurrency prefers explicit coordinates, then the IP locator, then USD.
func (s *QueryService) ResolveCurrency(ctx context.Context, w Where) domain.Currency {
	return s.resolver(ctx, w).Currency()
}

func (s *QueryService) resolver(ctx context.Context, w Where) *CurrencyResolver {
	r := NewCurrencyResolver(s.policy)
	switch {
	case w.Coords != nil:
		r.Resolve(w.Coords)
	case s.locator != nil && w.IP != "":
		c, err := s.locator.Locate(ctx, w.IP)
		if err != nil {
			r.Resolve(nil)
		} else {
			r.Resolve(&c)
		}
	default:
		r.Resolve(nil)
	}
	return r
}

func (s *QueryService) listing(ctx context.Context, title string, cur domain.Currency, ls []domain.Lodge) Listing {
	bs := s.bookmarks.GetBookmarks(ctx)
	out := Listing{Title: title, Currency: cur, Total: len(ls), Items: make([]domain.LodgeView, 0, len(ls))}
	for _, l := range ls {
		out.Items = append(out.Items, toView(l, cur, IsBookmarked(bs, l.ID)))
	}
	return out
}

func toView(l domain.Lodge, cur domain.Currency, bookmarked bool) domain.LodgeView {
	gallery := make([]domain.ImageView, 0, len(l.Gallery))
	for _, g := range l.Gallery {
		gallery = append(gallery, g.View())
	}
	return domain.LodgeView{
		ID:          l.ID,
		Name:        l.Name,
		Location:    l.Location,
		Description: l.Description,
		Image:       l.Image.View(),
		Gallery:     gallery,
		Amenities:   append([]string{}, l.Amenities...),
		Email:       l.Email,
		Phone:       l.Phone,
		Safety:      l.Safety,
		Price:       PriceTag{USD: l.Price, Discount: l.Discount}.Convert(cur),
		Map:         l.Coords(),
		Bookmarked:  bookmarked,
	}
}
