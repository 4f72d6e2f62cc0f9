// Package classes maps numeric detection class ids to their display
// properties. Lookups never fail: unknown ids get a synthesized name.
package classes

import (
	"fmt"

	"github.com/grigone/detweb/pkg/config"
)

type DetectionClass struct {
	ID    int
	Name  string
	Glyph string
}

type Registry struct {
	by_id map[int]DetectionClass
	ids   []int
}

// Default covers the custom-trained model shipped with the app:
// 0 = human, 1 = car
func Default() []DetectionClass {
	return []DetectionClass{
		{ID: 0, Name: "Human", Glyph: "👤"},
		{ID: 1, Name: "Car", Glyph: "🚗"},
	}
}

func NewRegistry(list []DetectionClass) *Registry {
	if len(list) == 0 {
		list = Default()
	}
	r := &Registry{by_id: make(map[int]DetectionClass, len(list))}
	for _, c := range list {
		if _, dup := r.by_id[c.ID]; dup {
			continue
		}
		r.by_id[c.ID] = c
		r.ids = append(r.ids, c.ID)
	}
	return r
}

func FromConfig(cfg []config.ClassConfig) *Registry {
	list := make([]DetectionClass, 0, len(cfg))
	for _, c := range cfg {
		list = append(list, DetectionClass{ID: int(c.ID), Name: c.Name, Glyph: c.Glyph})
	}
	return NewRegistry(list)
}

// Name resolves an id to its display name, synthesizing one for ids the
// model reports but the registry doesn't know
func (r *Registry) Name(id int) string {
	if c, ok := r.by_id[id]; ok {
		return c.Name
	}
	return fmt.Sprintf("Class %d", id)
}

func (r *Registry) Get(id int) (DetectionClass, bool) {
	c, ok := r.by_id[id]
	return c, ok
}

// IDs returns all known ids in declaration order
func (r *Registry) IDs() []int {
	ids := make([]int, len(r.ids))
	copy(ids, r.ids)
	return ids
}

func (r *Registry) All() []DetectionClass {
	all := make([]DetectionClass, 0, len(r.ids))
	for _, id := range r.ids {
		all = append(all, r.by_id[id])
	}
	return all
}

func (r *Registry) Len() int { return len(r.ids) }
