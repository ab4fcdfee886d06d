package shipping

import "strings"

type Zone string

const (
	ZoneDomestic      Zone = "DOMESTIC"
	ZoneRegional      Zone = "REGIONAL"
	ZoneContinental   Zone = "CONTINENTAL"
	ZoneInternational Zone = "INTERNATIONAL"
)

// Rate is the per-zone tariff. Amounts are in KES.
type Rate struct {
	Base          float64
	PerKg         float64
	IncludedKg    float64
	FreeThreshold float64
	EstDaysMin    int
	EstDaysMax    int
}

var rates = map[Zone]Rate{
	ZoneDomestic:      {Base: 350, PerKg: 120, IncludedKg: 1, FreeThreshold: 10000, EstDaysMin: 1, EstDaysMax: 3},
	ZoneRegional:      {Base: 1200, PerKg: 450, IncludedKg: 1, FreeThreshold: 25000, EstDaysMin: 3, EstDaysMax: 7},
	ZoneContinental:   {Base: 2500, PerKg: 800, IncludedKg: 0.5, FreeThreshold: 40000, EstDaysMin: 5, EstDaysMax: 12},
	ZoneInternational: {Base: 4500, PerKg: 1500, IncludedKg: 0.5, FreeThreshold: 60000, EstDaysMin: 7, EstDaysMax: 21},
}

var zoneByCountry = map[string]Zone{
	"KE": ZoneDomestic,

	"UG": ZoneRegional,
	"TZ": ZoneRegional,
	"RW": ZoneRegional,
	"BI": ZoneRegional,
	"SS": ZoneRegional,
	"ET": ZoneRegional,
	"SO": ZoneRegional,
	"CD": ZoneRegional,

	"NG": ZoneContinental,
	"GH": ZoneContinental,
	"ZA": ZoneContinental,
	"EG": ZoneContinental,
	"MA": ZoneContinental,
	"DZ": ZoneContinental,
	"TN": ZoneContinental,
	"SN": ZoneContinental,
	"CI": ZoneContinental,
	"CM": ZoneContinental,
	"ZM": ZoneContinental,
	"ZW": ZoneContinental,
	"BW": ZoneContinental,
	"NA": ZoneContinental,
	"MZ": ZoneContinental,
	"MW": ZoneContinental,
	"AO": ZoneContinental,
	"GM": ZoneContinental,
	"ML": ZoneContinental,
	"BF": ZoneContinental,
}

// ZoneFor maps an ISO-2 country code to its shipping zone. Unknown codes
// fall through to INTERNATIONAL instead of erroring so that a missing
// table entry never blocks checkout.
func ZoneFor(countryCode string) Zone {
	if z, ok := zoneByCountry[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
		return z
	}
	return ZoneInternational
}

// RateFor returns the tariff for a zone. Every Zone constant has an entry.
func RateFor(z Zone) Rate {
	return rates[z]
}
