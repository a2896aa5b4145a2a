package app

import (
	"math"
	"sync"

	"lodge_finder/internal/domain"
)

var (
	EUR = domain.Currency{Code: "EUR", Rate: 0.92, Symbol: "€"}
	GBP = domain.Currency{Code: "GBP", Rate: 0.79, Symbol: "£"}
	MWK = domain.Currency{Code: "MWK", Rate: 1750, Symbol: "MK"}
)

// Region is a lat/lon bounding box mapped to a currency.
type Region struct {
	Name     string
	Currency domain.Currency
	contains func(lat, lon float64) bool
}

var (
	europe = Region{Name: "europe", Currency: EUR, contains: func(lat, lon float64) bool {
		return lat > 48 && lat < 60 && lon > -10 && lon < 30
	}}
	uk = Region{Name: "uk", Currency: GBP, contains: func(lat, lon float64) bool {
		return lat > 50 && lat < 60 && lon > -10 && lon < 2
	}}
	malawi = Region{Name: "malawi", Currency: MWK, contains: func(lat, lon float64) bool {
		return lat >= -17 && lat <= -9 && lon >= 32 && lon <= 36
	}}
)

// CurrencyPolicy is the order regions are tested in; first match wins.
// The UK box sits inside the Europe box, so the order decides GBP vs EUR.
type CurrencyPolicy []Region

var (
	DefaultPolicy = CurrencyPolicy{europe, uk, malawi}
	UKFirstPolicy = CurrencyPolicy{uk, europe, malawi}
)

func PolicyFor(ukFirst bool) CurrencyPolicy {
	if ukFirst {
		return UKFirstPolicy
	}
	return DefaultPolicy
}

func DetermineCurrency(p CurrencyPolicy, lat, lon float64) domain.Currency {
	if p == nil {
		p = DefaultPolicy
	}
	for _, r := range p {
		if r.contains(lat, lon) {
			return r.Currency
		}
	}
	return domain.USD
}

// CurrencyResolver starts pending (USD) and resolves exactly once.
type CurrencyResolver struct {
	policy CurrencyPolicy

	once     sync.Once
	mu       sync.RWMutex
	resolved bool
	located  bool
	cur      domain.Currency
}

func NewCurrencyResolver(p CurrencyPolicy) *CurrencyResolver {
	return &CurrencyResolver{policy: p, cur: domain.USD}
}

// Resolve settles the currency from c, or USD when c is nil (geolocation
// failed). Only the first call has any effect.
func (r *CurrencyResolver) Resolve(c *domain.Coords) {
	r.once.Do(func() {
		cur := domain.USD
		if c != nil {
			cur = DetermineCurrency(r.policy, c.Lat, c.Lon)
		}
		r.mu.Lock()
		r.cur, r.resolved, r.located = cur, true, c != nil
		r.mu.Unlock()
	})
}

func (r *CurrencyResolver) Currency() domain.Currency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

func (r *CurrencyResolver) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// Located reports whether resolution came from real coordinates.
func (r *CurrencyResolver) Located() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.located
}

// PriceTag keeps the USD price and discount so a view can be re-converted.
type PriceTag struct {
	USD      float64
	Discount int
}

// Convert rounds the converted price first, then applies the discount.
func (t PriceTag) Convert(c domain.Currency) domain.PriceView {
	original := math.Round(t.USD * c.Rate)
	amount := original
	if t.Discount > 0 {
		amount = math.Round(original * (1 - float64(t.Discount)/100))
	}
	return domain.PriceView{
		USD:      t.USD,
		Discount: t.Discount,
		Currency: c.Code,
		Symbol:   c.Symbol,
		Original: original,
		Amount:   amount,
	}
}
