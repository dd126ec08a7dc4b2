package marker

import "strings"

// Filter is the streaming two-state marker machine. It consumes text
// deltas in arrival order and emits the public portion: text outside the
// marker pair. Text between the markers (and the markers themselves) is
// suppressed from the returned output but retained verbatim in Raw.
//
// Filter is not safe for concurrent use; each stream gets its own instance.
type Filter struct {
	pair   Pair
	inside bool

	// held holds back text that cannot be classified yet: outside a span
	// it is a possible prefix of the start marker, inside a span a possible
	// prefix of the end marker.
	held string

	raw strings.Builder
}

// NewFilter creates a Filter for the given marker pair.
func NewFilter(pair Pair) *Filter {
	return &Filter{pair: pair}
}

// Feed consumes one text delta and returns the public text it releases.
// The returned string may be empty (delta entirely suppressed or held
// back) or longer than the delta (previously held text released).
func (f *Filter) Feed(delta string) string {
	f.raw.WriteString(delta)
	f.held += delta

	var out strings.Builder
	for {
		if !f.inside {
			i := indexFold(f.held, f.pair.Start)
			if i < 0 {
				keep := partialPrefixLen(f.held, f.pair.Start)
				out.WriteString(f.held[:len(f.held)-keep])
				f.held = f.held[len(f.held)-keep:]
				return out.String()
			}
			out.WriteString(f.held[:i])
			f.held = f.held[i+len(f.pair.Start):]
			f.inside = true
			continue
		}

		i := indexFold(f.held, f.pair.End)
		if i < 0 {
			// Suppressed span continues. Only a possible partial end
			// marker needs to survive in the lookback buffer.
			keep := partialPrefixLen(f.held, f.pair.End)
			f.held = f.held[len(f.held)-keep:]
			return out.String()
		}
		f.held = f.held[i+len(f.pair.End):]
		f.inside = false
	}
}

// Close ends the stream and returns any final public text. A tail held
// back as a possible start marker is released (it never completed), while
// a suppressed span that never saw its closing marker is dropped; that is
// not an error.
func (f *Filter) Close() string {
	tail := f.held
	f.held = ""
	if f.inside {
		return ""
	}
	return tail
}

// Inside reports whether the filter is currently within a suppressed span.
func (f *Filter) Inside() bool {
	return f.inside
}

// Raw returns everything fed so far, including suppressed spans. The raw
// text is what gets committed to history and session logs.
func (f *Filter) Raw() string {
	return f.raw.String()
}
