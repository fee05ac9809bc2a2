package directory

import "gitlab.com/tozd/go/errors"

// ErrUnknownRegion is returned by ParseRegion callers that need an error
// value for a region outside the selectable set.
var ErrUnknownRegion = errors.New("unknown region")

// Region is the continent grouping reported by the data source.
type Region string

// RegionNone means "no region filter". It is distinct from every real region.
const RegionNone Region = ""

const (
	RegionEurope    Region = "Europe"
	RegionAfrica    Region = "Africa"
	RegionAmericas  Region = "Americas"
	RegionOceania   Region = "Oceania"
	RegionAsia      Region = "Asia"
	RegionAntarctic Region = "Antarctic"
)

// Regions returns the selectable regions in display order.
func Regions() []Region {
	return []Region{
		RegionEurope,
		RegionAfrica,
		RegionAmericas,
		RegionOceania,
		RegionAsia,
		RegionAntarctic,
	}
}

// IsValid reports whether r is one of the selectable regions.
// RegionNone is not a region and reports false.
func (r Region) IsValid() bool {
	switch r {
	case RegionEurope, RegionAfrica, RegionAmericas, RegionOceania, RegionAsia, RegionAntarctic:
		return true
	}
	return false
}

// IsNone reports whether r is the "no filter" sentinel.
func (r Region) IsNone() bool { return r == RegionNone }

func (r Region) String() string { return string(r) }

// ParseRegion accepts the empty string (no filter) or one of the canonical
// region names. Matching is exact; "asia" is not "Asia".
func ParseRegion(s string) (Region, bool) {
	r := Region(s)
	if r.IsNone() || r.IsValid() {
		return r, true
	}
	return RegionNone, false
}
