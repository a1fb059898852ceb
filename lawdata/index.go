package lawdata

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Index maps normalized section ids to the records that carry them. It is
// built once and never mutated afterwards, so concurrent lookups need no
// locking.
type Index struct {
	bySection map[string][]LawRecord
	records   int
	malformed []int
}

// NewIndex builds an index over records. Records without any section number
// are left out; their positions are available from Malformed and they are
// reported with a single log line.
func NewIndex(records []LawRecord) *Index {
	ix := &Index{bySection: make(map[string][]LawRecord, len(records))}
	for i, r := range records {
		id := r.SectionID()
		if id == "" {
			ix.malformed = append(ix.malformed, i)
			continue
		}
		ix.bySection[id] = append(ix.bySection[id], r)
		ix.records++
	}
	if len(ix.malformed) > 0 {
		slog.Warn("lawdata: records without section number excluded from index",
			"count", len(ix.malformed), "first_position", ix.malformed[0],
			"error", ErrMalformedRecord)
	}
	return ix
}

// Lookup returns every record whose section id equals id, in input order.
// The returned slice must not be modified.
func (ix *Index) Lookup(id string) []LawRecord {
	return ix.bySection[id]
}

// Len returns the number of distinct section ids.
func (ix *Index) Len() int { return len(ix.bySection) }

// Records returns the number of indexed records.
func (ix *Index) Records() int { return ix.records }

// Malformed returns the input positions of records that were not indexed.
func (ix *Index) Malformed() []int { return ix.malformed }

// Sections returns all section ids in natural order.
func (ix *Index) Sections() []string {
	ids := make([]string, 0, len(ix.bySection))
	for id := range ix.bySection {
		ids = append(ids, id)
	}
	SortSectionIDs(ids)
	return ids
}

// SortSectionIDs orders ids by their leading number, then by the remaining
// suffix, so "2" < "10" < "10A" < "11". Ids without a leading number sort
// after numbered ones.
func SortSectionIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return lessSectionID(ids[i], ids[j])
	})
}

func lessSectionID(a, b string) bool {
	na, sa, oka := splitNumber(a)
	nb, sb, okb := splitNumber(b)
	switch {
	case oka && okb:
		if na != nb {
			return na < nb
		}
		return sa < sb
	case oka != okb:
		return oka
	default:
		return a < b
	}
}

func splitNumber(id string) (int, string, bool) {
	end := strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) || r > unicode.MaxASCII })
	if end == -1 {
		end = len(id)
	}
	if end == 0 {
		return 0, id, false
	}
	n, err := strconv.Atoi(id[:end])
	if err != nil {
		return 0, id, false
	}
	return n, id[end:], true
}
