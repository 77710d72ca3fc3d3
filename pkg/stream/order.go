package stream

import (
	"cmp"
	"slices"

	"github.com/rzbill/tideline/pkg/event"
)

// sortByTimestamp stably sorts recs by their timestamp field when every
// record carries one and all of them share a comparable kind (number or
// string). It returns how many records prevent the sort; zero means recs
// were sorted.
func sortByTimestamp(recs []Record) int {
	var numbers, strs, other int
	for _, r := range recs {
		ts, ok := r.Event.Timestamp()
		switch {
		case !ok:
			other++
		case ts.Kind() == event.KindNumber:
			numbers++
		case ts.Kind() == event.KindString:
			strs++
		default:
			other++
		}
	}
	if blocking := other + min(numbers, strs); blocking > 0 {
		return blocking
	}

	slices.SortStableFunc(recs, func(a, b Record) int {
		av, _ := a.Event.Timestamp()
		bv, _ := b.Event.Timestamp()
		if an, ok := av.AsNumber(); ok {
			bn, _ := bv.AsNumber()
			return cmp.Compare(an, bn)
		}
		as, _ := av.AsString()
		bs, _ := bv.AsString()
		return cmp.Compare(as, bs)
	})
	return 0
}
