// Package directory holds the country directory and derives the visible page
// from the current search text, region filter and page index.
//
// A Store is owned by exactly one consumer. It is not safe for concurrent
// use; callers that share one across goroutines must serialise access.
package directory

import "strings"

// DefaultPageSize is the number of records shown per page.
const DefaultPageSize = 8

// Record is one country entry. Only DisplayName and Region take part in
// filtering; the remaining fields are carried through for display.
type Record struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"name" yaml:"name"`
	Region      Region `json:"region" yaml:"region"`
	Population  int64  `json:"population" yaml:"population"`
	Capital     string `json:"capital,omitempty" yaml:"capital,omitempty"`
	FlagURL     string `json:"flag_url,omitempty" yaml:"flag_url,omitempty"`
	FlagAlt     string `json:"flag_alt,omitempty" yaml:"flag_alt,omitempty"`
}

// FilterState is the only mutable part of a Store.
type FilterState struct {
	SearchText string `json:"search" yaml:"search"`
	Region     Region `json:"region" yaml:"region"`
	Page       int    `json:"page" yaml:"page"`
}

// DefaultFilter returns the state a freshly loaded store starts from.
func DefaultFilter() FilterState {
	return FilterState{Page: 1}
}

// View is the derived, renderable state of a Store.
type View struct {
	Visible    []Record    `json:"visible" yaml:"visible"`
	Page       int         `json:"page" yaml:"page"`
	TotalPages int         `json:"total_pages" yaml:"total_pages"`
	MatchCount int         `json:"match_count" yaml:"match_count"`
	PageSize   int         `json:"page_size" yaml:"page_size"`
	Filter     FilterState `json:"filter" yaml:"filter"`
}

// HasPrev reports whether a previous page exists.
func (v View) HasPrev() bool { return v.Page > 1 }

// HasNext reports whether a next page exists.
func (v View) HasNext() bool { return v.Page < v.TotalPages }

// Store holds the loaded records and the current filter.
type Store struct {
	records  []Record
	filter   FilterState
	pageSize int
}

// NewStore returns an empty store. A non-positive pageSize falls back to
// DefaultPageSize.
func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		filter:   DefaultFilter(),
		pageSize: pageSize,
	}
}

// Load replaces the record set and resets the filter to its defaults.
// The store keeps its own copy; later changes to records are not observed.
func (s *Store) Load(records []Record) View {
	s.records = append([]Record(nil), records...)
	s.filter = DefaultFilter()
	return s.Derive()
}

// SetSearchText updates the search text. The page is clamped into the new
// range but not reset to 1.
func (s *Store) SetSearchText(text string) View {
	s.filter.SearchText = text
	return s.clampPage()
}

// SetRegionFilter updates the region filter. RegionNone clears it.
// The page is clamped the same way as in SetSearchText.
func (s *Store) SetRegionFilter(region Region) View {
	s.filter.Region = region
	return s.clampPage()
}

// FilterChange is a combined search and region update. Nil fields keep
// their current value.
type FilterChange struct {
	SearchText *string
	Region     *Region
}

// UpdateFilter applies every field of c before clamping the page once,
// against the final filter.
func (s *Store) UpdateFilter(c FilterChange) View {
	if c.SearchText != nil {
		s.filter.SearchText = *c.SearchText
	}
	if c.Region != nil {
		s.filter.Region = *c.Region
	}
	return s.clampPage()
}

// NextPage advances one page. It is a no-op on the last page.
func (s *Store) NextPage() View {
	return s.movePage(1)
}

// PrevPage goes back one page. It is a no-op on page 1.
func (s *Store) PrevPage() View {
	return s.movePage(-1)
}

// Derive computes the visible page from the current state.
func (s *Store) Derive() View {
	return Derive(s.records, s.filter, s.pageSize)
}

// Filter returns a snapshot of the current filter.
func (s *Store) Filter() FilterState { return s.filter }

// PageSize returns the page size fixed at construction.
func (s *Store) PageSize() int { return s.pageSize }

// Len returns the number of loaded records.
func (s *Store) Len() int { return len(s.records) }

func (s *Store) movePage(delta int) View {
	total := TotalPages(countMatches(s.records, s.filter), s.pageSize)
	s.filter.Page = clamp(s.filter.Page+delta, 1, total)
	return s.Derive()
}

func (s *Store) clampPage() View {
	v := s.Derive()
	s.filter.Page = v.Page
	return v
}

// Derive filters records by filter, then slices out the requested page.
// It never fails: out-of-range pages are clamped and an empty result is a
// single empty page.
func Derive(records []Record, filter FilterState, pageSize int) View {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	matches := Matches(records, filter)
	total := TotalPages(len(matches), pageSize)
	page := clamp(filter.Page, 1, total)

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(matches))
	visible := []Record{}
	if start < len(matches) {
		visible = append(visible, matches[start:end]...)
	}

	filter.Page = page
	return View{
		Visible:    visible,
		Page:       page,
		TotalPages: total,
		MatchCount: len(matches),
		PageSize:   pageSize,
		Filter:     filter,
	}
}

// Matches returns the records that satisfy both the region filter and the
// search text, in their original order. The input slice is not modified.
func Matches(records []Record, filter FilterState) []Record {
	m := newMatcher(filter)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// TotalPages returns ceil(count/pageSize), never less than 1.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

func countMatches(records []Record, filter FilterState) int {
	m := newMatcher(filter)
	n := 0
	for _, r := range records {
		if m.match(r) {
			n++
		}
	}
	return n
}

type matcher struct {
	region Region
	needle string
}

func newMatcher(filter FilterState) matcher {
	return matcher{
		region: filter.Region,
		needle: strings.ToLower(filter.SearchText),
	}
}

// match is exact on region and case-insensitive substring on DisplayName.
func (m matcher) match(r Record) bool {
	if !m.region.IsNone() && r.Region != m.region {
		return false
	}
	if m.needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.DisplayName), m.needle)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
