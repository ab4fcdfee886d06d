package money

import "math"

// KESPerUSD is the static display-conversion rate. Quotes are priced in
// KES and converted for display only; settlement always happens in KES.
const KESPerUSD = 129.0

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func KESToUSD(kes float64) float64 {
	return Round2(kes / KESPerUSD)
}
