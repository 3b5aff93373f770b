package mesh

import (
	"log/slog"
	"sort"
)

// Registry owns every Link, keyed by participant id. Removal erases the
// entry, so iteration only ever sees live links.
type Registry struct {
	links   map[string]*Link
	newLink func(participant string) (*Link, error)
}

// NewRegistry returns an empty registry that builds links with newLink.
func NewRegistry(newLink func(participant string) (*Link, error)) *Registry {
	return &Registry{
		links:   make(map[string]*Link),
		newLink: newLink,
	}
}

func (r *Registry) Get(participant string) (*Link, bool) {
	l, ok := r.links[participant]
	return l, ok
}

// GetOrCreate returns the link for participant, creating it on first use.
func (r *Registry) GetOrCreate(participant string) (*Link, error) {
	l, _, err := r.getOrCreate(participant)
	return l, err
}

func (r *Registry) getOrCreate(participant string) (*Link, bool, error) {
	if l, ok := r.links[participant]; ok {
		return l, false, nil
	}
	l, err := r.newLink(participant)
	if err != nil {
		return nil, false, err
	}
	r.links[participant] = l
	return l, true, nil
}

// adopt files an already built link under its participant.
func (r *Registry) adopt(l *Link) {
	r.links[l.participant] = l
}

// Remove closes and erases the link for participant. It reports whether a
// link existed.
func (r *Registry) Remove(participant string) bool {
	l, ok := r.links[participant]
	if !ok {
		return false
	}
	delete(r.links, participant)
	if err := l.close(); err != nil {
		slog.Debug("closing link", "participant", participant, "err", err)
	}
	return true
}

// CloseAll closes every link and empties the registry, returning how many
// links were closed.
func (r *Registry) CloseAll() int {
	n := 0
	for _, id := range r.IDs() {
		if r.Remove(id) {
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	return len(r.links)
}

// IDs returns the tracked participant ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.links))
	for id := range r.links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each calls fn for every link in participant order.
func (r *Registry) Each(fn func(*Link)) {
	for _, id := range r.IDs() {
		fn(r.links[id])
	}
}
