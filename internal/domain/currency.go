package domain

// Currency is the display currency for one request; never persisted.
type Currency struct {
	Code   string  `json:"code"`
	Rate   float64 `json:"rate"` // multiplier applied to USD
	Symbol string  `json:"symbol"`
}

var USD = Currency{Code: "USD", Rate: 1, Symbol: "$"}
