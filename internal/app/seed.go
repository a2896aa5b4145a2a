package app

import "lodge_finder/internal/domain"

func pf(f float64) *float64 { return &f }

// SeedLodges returns the example lodges written on first run.
func SeedLodges() []domain.Lodge {
	ls := []domain.Lodge{
		{
			ID:          1,
			Name:        "Alpine Sanctuary",
			Location:    "Swiss Alps",
			Price:       450,
			Image:       domain.LocalAsset(domain.DefaultImage),
			Description: "Experience the pinnacle of luxury in the heart of the Swiss Alps. Alpine Sanctuary offers a secluded retreat where modern comfort meets traditional alpine charm.",
			Amenities:   []string{"Private Spa", "Gourmet Dining", "Ski-in/Ski-out", "Concierge"},
			Email:       "info@alpinesanctuary.com",
			Phone:       "+41 12 345 6789",
			Safety:      5,
			Lat:         pf(46.603354),
			Lon:         pf(7.96871),
		},
		{
			ID:          2,
			Name:        "Oceanfront Villa",
			Location:    "Maldives",
			Price:       850,
			Image:       domain.LocalAsset(domain.DefaultImage),
			Description: "Wake up to the sound of waves in this overwater villa. Perfect for honeymooners and peace seekers.",
			Amenities:   []string{"Infinity Pool", "Butler Service", "Water Sports", "Fine Dining"},
			Email:       "reservations@oceanfront.com",
			Phone:       "+960 123 4567",
			Safety:      4.8,
			Lat:         pf(4.175496),
			Lon:         pf(73.509347),
		},
		{
			ID:          3,
			Name:        "Forest Hideaway",
			Location:    "Oregon, USA",
			Price:       250,
			Image:       domain.LocalAsset(domain.DefaultImage),
			Description: "A cozy cabin deep in the woods, perfect for disconnecting from the digital world.",
			Amenities:   []string{"Fireplace", "Hiking Trails", "Pet Friendly", "Kitchen"},
			Email:       "stay@foresthideaway.com",
			Phone:       "+1 555 0199",
			Safety:      5,
		},
	}
	for i := range ls {
		ls[i].Normalize()
	}
	return ls
}
