package chunk

import (
	"slices"
	"sort"
)

// PageMap maps byte offsets of the chapter text to page numbers. Page texts
// are laid end to end in page order; an offset belongs to the page whose
// span contains it. The full text is reconstructed and so rarely has exactly
// the length of the raw page texts: the mapping is approximate by nature.
type PageMap struct {
	pages []int // page numbers, ascending
	ends  []int // cumulative exclusive end offset of each page
}

// NewPageMap builds a PageMap from raw page texts. Without page texts every
// offset maps to page 1.
func NewPageMap(pages map[int]string, totalPages int) PageMap {
	nums := make([]int, 0, len(pages))
	for p := range pages {
		if p >= 1 && (totalPages <= 0 || p <= totalPages) {
			nums = append(nums, p)
		}
	}
	slices.Sort(nums)

	m := PageMap{pages: nums, ends: make([]int, len(nums))}
	total := 0
	for i, p := range nums {
		total += len(pages[p])
		m.ends[i] = total
	}
	return m
}

// Page returns the page holding offset. Offsets past the last page map to
// the last page.
func (m PageMap) Page(offset int) int {
	if len(m.pages) == 0 {
		return 1
	}
	i := sort.SearchInts(m.ends, offset+1)
	if i >= len(m.pages) {
		return m.pages[len(m.pages)-1]
	}
	return m.pages[i]
}
