package bitcoin

import (
	"math"
	"math/rand"
	"time"
)

// maxJitter bounds the random perturbation applied to each synthesized
// price, as a fraction of the interpolated base value.
const maxJitter = 0.02

// Synthesizer produces a plausible daily price series when the configured
// upstream only exposes a current price. The output is synthetic and
// non-authoritative: it interpolates between coarse anchor price levels and
// must never be presented as real historical data.
type Synthesizer struct {
	anchors []float64
	rng     *rand.Rand
}

// NewSynthesizer builds a synthesizer over the given anchor prices, oldest
// first. The live current price is appended as the final anchor at synthesis
// time. A nil rng gets a time-seeded source; tests inject a fixed seed.
func NewSynthesizer(anchors []float64, rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Synthesizer{anchors: append([]float64(nil), anchors...), rng: rng}
}

// Synthesize returns one point per calendar day from startDate to now,
// ascending, ending at exactly currentPrice. With no anchors configured it
// degrades to a flat series of currentPrice.
func (s *Synthesizer) Synthesize(startDate, now time.Time, currentPrice float64) []PricePoint {
	n := daysBetween(startDate, now)
	points := make([]PricePoint, 0, n)

	for i := 0; i < n; i++ {
		date := startDate.AddDate(0, 0, i)

		price := currentPrice
		if i < n-1 && len(s.anchors) > 0 {
			base := s.interpolate(float64(i)/float64(n), currentPrice)
			jitter := (s.rng.Float64()*2 - 1) * maxJitter * base
			price = base + jitter
			if price < 0 {
				price = 0
			}
		}

		points = append(points, PricePoint{Date: date, Price: price})
	}
	return points
}

// interpolate picks the anchor segment progress falls into and linearly
// interpolates the base price within it. The anchor list is the configured
// anchors followed by the live current price.
func (s *Synthesizer) interpolate(progress, currentPrice float64) float64 {
	full := append(append([]float64(nil), s.anchors...), currentPrice)
	pos := progress * float64(len(full)-1)
	seg := int(pos)
	if seg >= len(full)-1 {
		return full[len(full)-1]
	}
	frac := pos - float64(seg)
	return full[seg] + (full[seg+1]-full[seg])*frac
}

// daysBetween counts calendar days from start to now, rounding partial days
// up. Always at least 1 so a same-day series still has one point.
func daysBetween(start, now time.Time) int {
	n := int(math.Ceil(now.Sub(start).Hours() / 24))
	if n < 1 {
		n = 1
	}
	return n
}
