package shipping

import (
	"errors"
	"math"
	"strings"

	"github.com/soko-arts/marketplace/internal/util/money"
)

var (
	ErrMissingCountry = errors.New("country code is required")
	ErrUnknownTier    = errors.New("unknown service tier")
)

type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierExpress  Tier = "EXPRESS"
)

type tierFactor struct {
	cost float64
	days float64
}

var tierFactors = map[Tier]tierFactor{
	TierStandard: {cost: 1.0, days: 1.0},
	TierExpress:  {cost: 1.75, days: 0.5},
}

// MinBillableKg is charged when a request carries no usable weight.
const MinBillableKg = 0.5

type Quote struct {
	CostKES      float64 `json:"cost_kes"`
	CostUSD      float64 `json:"cost_usd"`
	Currency     string  `json:"currency"`
	Zone         Zone    `json:"zone"`
	Tier         Tier    `json:"tier"`
	EstDaysMin   int     `json:"est_days_min"`
	EstDaysMax   int     `json:"est_days_max"`
	FreeShipping bool    `json:"free_shipping"`
}

// Calculate prices a parcel for a destination. It is pure: the only
// failure modes are a missing country code and an unknown tier, which are
// caller input problems. Zero or negative weight falls back to the
// minimum billable weight; subtotal only matters for the free threshold.
func Calculate(countryCode string, weightKg, subtotal float64, tier Tier) (*Quote, error) {
	if strings.TrimSpace(countryCode) == "" {
		return nil, ErrMissingCountry
	}
	if tier == "" {
		tier = TierStandard
	}
	tf, ok := tierFactors[tier]
	if !ok {
		return nil, ErrUnknownTier
	}

	if weightKg <= 0 {
		weightKg = MinBillableKg
	}
	if subtotal < 0 {
		subtotal = 0
	}

	zone := ZoneFor(countryCode)
	rate := RateFor(zone)

	cost := math.Max(rate.Base, rate.Base+rate.PerKg*math.Max(0, weightKg-rate.IncludedKg))
	cost *= tf.cost

	free := subtotal >= rate.FreeThreshold
	if free {
		cost = 0
	}

	daysMin := scaleDays(rate.EstDaysMin, tf.days)
	daysMax := scaleDays(rate.EstDaysMax, tf.days)

	return &Quote{
		CostKES:      money.Round2(cost),
		CostUSD:      money.KESToUSD(cost),
		Currency:     "KES",
		Zone:         zone,
		Tier:         tier,
		EstDaysMin:   daysMin,
		EstDaysMax:   daysMax,
		FreeShipping: free,
	}, nil
}

func scaleDays(days int, factor float64) int {
	scaled := int(math.Round(float64(days) * factor))
	if scaled < 1 {
		return 1
	}
	return scaled
}
