package index

import "sync/atomic"

// Holder publishes the current index to readers. Replace swaps in a rebuilt
// index without readers ever seeing a partial one.
type Holder struct {
	current atomic.Pointer[CorpusIndex]
}

// NewHolder returns a holder serving x, which may be nil.
func NewHolder(x *CorpusIndex) *Holder {
	h := &Holder{}
	if x != nil {
		h.current.Store(x)
	}
	return h
}

// Current returns the index being served or nil before the first build.
func (h *Holder) Current() *CorpusIndex {
	return h.current.Load()
}

// Replace serves x from now on and returns the previous index.
func (h *Holder) Replace(x *CorpusIndex) *CorpusIndex {
	return h.current.Swap(x)
}
