package engine

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"token_scanner/internal/domain"
)

// State is an immutable view of every known pair. A new State is produced for
// every change; tokens inside it are never modified after publication.
type State struct {
	Version uint64                   `json:"version"`
	Tokens  map[string]*domain.Token `json:"tokens"` // by canonical id
	Meta    map[string]domain.Meta   `json:"meta"`
	Pages   map[int][]string         `json:"pages"` // page -> ordered ids
}

// NewState returns an empty state at version 0.
func NewState() *State {
	return &State{
		Tokens: make(map[string]*domain.Token),
		Meta:   make(map[string]domain.Meta),
		Pages:  make(map[int][]string),
	}
}

// Lookup finds a token by pair address regardless of case.
func (s *State) Lookup(pairAddress string) (*domain.Token, bool) {
	if pairAddress == "" {
		return nil, false
	}
	if t, ok := s.Tokens[pairAddress]; ok {
		return t, true
	}
	if t, ok := s.Tokens[domain.TokenID(pairAddress)]; ok {
		return t, true
	}
	for id, t := range s.Tokens {
		if strings.EqualFold(id, pairAddress) {
			return t, true
		}
	}
	return nil, false
}

// Len returns the number of tokens.
func (s *State) Len() int {
	return len(s.Tokens)
}

// PageNumbers returns the populated pages in ascending order.
func (s *State) PageNumbers() []int {
	pages := slices.Collect(maps.Keys(s.Pages))
	sort.Ints(pages)
	return pages
}

// Ordered returns tokens in page order, followed by tokens no page references.
func (s *State) Ordered() []*domain.Token {
	out := make([]*domain.Token, 0, len(s.Tokens))
	seen := make(map[string]struct{}, len(s.Tokens))
	for _, p := range s.PageNumbers() {
		for _, id := range s.Pages[p] {
			t, ok := s.Tokens[id]
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, t)
		}
	}
	rest := make([]string, 0)
	for id := range s.Tokens {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, s.Tokens[id])
	}
	return out
}

// draft is a copy-on-write builder over a base state. The base is copied on
// the first write only, so a command without effect allocates nothing.
type draft struct {
	base *State
	next *State
}

func (d *draft) state() *State {
	if d.next == nil {
		d.next = &State{
			Version: d.base.Version + 1,
			Tokens:  maps.Clone(d.base.Tokens),
			Meta:    maps.Clone(d.base.Meta),
			Pages:   maps.Clone(d.base.Pages),
		}
	}
	return d.next
}

func (d *draft) current() *State {
	if d.next != nil {
		return d.next
	}
	return d.base
}

func (d *draft) putToken(t *domain.Token) {
	d.state().Tokens[t.ID] = t
}

func (d *draft) putMeta(id string, m domain.Meta) {
	if cur, ok := d.current().Meta[id]; ok && cur == m {
		return
	}
	d.state().Meta[id] = m
}

func (d *draft) putPage(page int, ids []string) {
	if cur, ok := d.current().Pages[page]; ok && slices.Equal(cur, ids) {
		return
	}
	d.state().Pages[page] = ids
}

func (d *draft) result() *State {
	return d.current()
}
