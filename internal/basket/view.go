package basket

import (
	"sort"
	"strings"
)

// Projection reconciles store snapshots with a remembered display order so
// that toggling or refreshing never visually reshuffles the list. The order
// lives only in memory, per view session; it is never persisted.
type Projection struct {
	order    []string
	items    map[string]Item
	recipes  []RecipeEntry
	hasOrder bool
}

// NewProjection creates an empty projection. The first Reconcile adopts the
// store's order as-is.
func NewProjection() *Projection {
	return &Projection{items: make(map[string]Item)}
}

// Reconcile absorbs a basket snapshot: ids still present keep their relative
// order, ids that disappeared are dropped in place, and new ids are appended
// in the order the store returned them.
func (p *Projection) Reconcile(b *Basket) {
	ids := make([]string, 0, len(b.Items))
	p.items = make(map[string]Item, len(b.Items))
	for _, it := range b.Items {
		ids = append(ids, it.ID)
		p.items[it.ID] = it
	}
	p.recipes = append([]RecipeEntry(nil), b.Recipes...)

	if !p.hasOrder {
		p.order = ids
		p.hasOrder = true
		return
	}

	kept := p.order[:0:0]
	for _, id := range p.order {
		if _, ok := p.items[id]; ok {
			kept = append(kept, id)
		}
	}
	known := make(map[string]bool, len(kept))
	for _, id := range kept {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			kept = append(kept, id)
		}
	}
	p.order = kept
}

// Items returns the current items in remembered order.
func (p *Projection) Items() []Item {
	out := make([]Item, 0, len(p.order))
	for _, id := range p.order {
		if it, ok := p.items[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

// CategoryGroup is one display bucket of the by-category grouping.
type CategoryGroup struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
}

// ByCategory buckets items by category. Items keep remembered order inside a
// bucket; buckets are listed alphabetically by category name.
func (p *Projection) ByCategory() []CategoryGroup {
	buckets := make(map[Category][]Item)
	for _, it := range p.Items() {
		cat := it.Category
		if cat == "" {
			cat = CategoryOther
		}
		buckets[cat] = append(buckets[cat], it)
	}

	names := make([]string, 0, len(buckets))
	for cat := range buckets {
		names = append(names, string(cat))
	}
	sort.Strings(names)

	groups := make([]CategoryGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, CategoryGroup{Category: Category(name), Items: buckets[Category(name)]})
	}
	return groups
}

// RecipeGroup is one display bucket of the by-recipe grouping.
type RecipeGroup struct {
	RecipeID string `json:"recipe_id"`
	Title    string `json:"title"`
	Items    []Item `json:"items"`
}

// ByRecipe buckets items by contributing recipe. An item contributed by two
// recipes appears once in each of their buckets; this fan-out is intentional.
// Buckets appear in order of first contribution within the remembered order.
func (p *Projection) ByRecipe() []RecipeGroup {
	titles := make(map[string]string, len(p.recipes))
	for _, e := range p.recipes {
		titles[e.RecipeID] = e.Title
	}

	var bucketOrder []string
	buckets := make(map[string][]Item)
	for _, it := range p.Items() {
		for _, recipeID := range it.RecipeIDs {
			if _, ok := buckets[recipeID]; !ok {
				bucketOrder = append(bucketOrder, recipeID)
			}
			if !containsItem(buckets[recipeID], it.ID) {
				buckets[recipeID] = append(buckets[recipeID], it)
			}
		}
	}

	groups := make([]RecipeGroup, 0, len(bucketOrder))
	for _, recipeID := range bucketOrder {
		groups = append(groups, RecipeGroup{
			RecipeID: recipeID,
			Title:    titles[recipeID],
			Items:    buckets[recipeID],
		})
	}
	return groups
}

// Filter bypasses grouping and returns the remembered order filtered by a
// case-insensitive substring match on the item name. It never mutates the
// remembered order.
func (p *Projection) Filter(query string) []Item {
	needle := strings.ToLower(query)
	var out []Item
	for _, it := range p.Items() {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			out = append(out, it)
		}
	}
	return out
}

func containsItem(items []Item, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
