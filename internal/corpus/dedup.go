package corpus

import "github.com/IshaanNene/pressgoat/internal/types"

// segment is a run of rows sharing an origin.
type segment struct {
	rows  types.Table
	fresh bool
}

// dedupByText keeps one row per distinct body text. A fresh row beats a
// cached one; between rows of the same origin the later one wins. Kept rows
// stay in concatenation order.
func dedupByText(segs ...segment) types.Table {
	type winner struct {
		pos   int
		fresh bool
	}

	total := 0
	for _, s := range segs {
		total += len(s.rows)
	}

	best := make(map[string]winner, total)
	pos := 0
	for _, s := range segs {
		for _, a := range s.rows {
			w, seen := best[a.SourceFullText]
			if !seen || s.fresh || !w.fresh {
				best[a.SourceFullText] = winner{pos: pos, fresh: s.fresh}
			}
			pos++
		}
	}

	out := make(types.Table, 0, len(best))
	pos = 0
	for _, s := range segs {
		for _, a := range s.rows {
			if best[a.SourceFullText].pos == pos {
				out = append(out, a)
			}
			pos++
		}
	}
	return out
}

// newRows returns the rows of t whose text is absent from before.
func newRows(t types.Table, before map[string]struct{}) types.Table {
	var out types.Table
	for _, a := range t {
		if _, ok := before[a.SourceFullText]; !ok {
			out = append(out, a)
		}
	}
	return out
}
