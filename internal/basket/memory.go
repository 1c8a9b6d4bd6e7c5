package basket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory basket store. Safe for concurrent access. It is
// the reference implementation for the store invariants and backs tests and
// database-less runs.
type MemoryStore struct {
	mu         sync.RWMutex
	baskets    map[string]*Basket
	order      []string // basket ids by creation, newest last
	aggregator *Aggregator
}

// NewMemoryStore creates an empty in-memory basket store.
func NewMemoryStore(agg *Aggregator) *MemoryStore {
	if agg == nil {
		agg = NewAggregator(nil)
	}
	return &MemoryStore{
		baskets:    make(map[string]*Basket),
		aggregator: agg,
	}
}

// Current returns the most recently created basket, creating one if none
// exists.
func (s *MemoryStore) Current(ctx context.Context) (*Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		now := time.Now().UTC()
		b := &Basket{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
		s.baskets[b.ID] = b
		s.order = append(s.order, b.ID)
	}
	return copyBasket(s.baskets[s.order[len(s.order)-1]]), nil
}

// Snapshot returns a read-only copy of a basket.
func (s *MemoryStore) Snapshot(ctx context.Context, basketID string) (*Basket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBasket(b), nil
}

// AddRecipe adds a recipe at the given servings or, if already present,
// updates its servings only.
func (s *MemoryStore) AddRecipe(ctx context.Context, basketID string, snap RecipeSnapshot, servings int) error {
	if err := snap.validate(); err != nil {
		return err
	}
	if servings < 1 {
		servings = snap.Servings
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return ErrNotFound
	}

	for i := range b.Recipes {
		if b.Recipes[i].RecipeID == snap.ID {
			// Existing items are deliberately not rescaled; only an explicit
			// re-add after removal picks up the new amounts.
			b.Recipes[i].Servings = servings
			b.UpdatedAt = time.Now().UTC()
			return nil
		}
	}

	b.Recipes = append(b.Recipes, RecipeEntry{
		RecipeID:         snap.ID,
		Title:            snap.Title,
		Servings:         servings,
		OriginalServings: snap.Servings,
	})

	proposed := s.aggregator.ExpandRecipe(snap.Ingredients, servings, snap.Servings, snap.ID)
	b.Items = mergeProposed(b.Items, proposed)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// mergeProposed folds proposed lines into the item set. A proposed line whose
// (name, unit) matches an existing item extends that item's contributor set;
// the stored amount is left as-is. Anything else becomes a new item.
func mergeProposed(items []Item, proposed []ProposedItem) []Item {
	for _, p := range proposed {
		merged := false
		for i := range items {
			if items[i].Name == p.Name && items[i].Unit == p.Unit {
				if !containsString(items[i].RecipeIDs, p.RecipeID) {
					items[i].RecipeIDs = append(items[i].RecipeIDs, p.RecipeID)
				}
				merged = true
				break
			}
		}
		if !merged {
			items = append(items, Item{
				ID:        uuid.NewString(),
				Name:      p.Name,
				Amount:    p.Amount,
				Unit:      p.Unit,
				Category:  p.Category,
				RecipeIDs: []string{p.RecipeID},
			})
		}
	}
	return items
}

// RemoveRecipe removes a recipe entry and prunes its contributions. Calling
// it for an absent recipe is a no-op.
func (s *MemoryStore) RemoveRecipe(ctx context.Context, basketID, recipeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return ErrNotFound
	}

	kept := b.Recipes[:0:0]
	for _, e := range b.Recipes {
		if e.RecipeID != recipeID {
			kept = append(kept, e)
		}
	}
	b.Recipes = kept
	b.Items = removeContributor(b.Items, recipeID)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// removeContributor drops recipeID from every item's contributor set and
// deletes items it was the sole contributor of. No item survives with an
// empty contributor set.
func removeContributor(items []Item, recipeID string) []Item {
	kept := items[:0:0]
	for _, it := range items {
		if !containsString(it.RecipeIDs, recipeID) {
			kept = append(kept, it)
			continue
		}
		if len(it.RecipeIDs) == 1 {
			continue
		}
		ids := make([]string, 0, len(it.RecipeIDs)-1)
		for _, id := range it.RecipeIDs {
			if id != recipeID {
				ids = append(ids, id)
			}
		}
		it.RecipeIDs = ids
		kept = append(kept, it)
	}
	return kept
}

// SetItemChecked sets an item's checked flag.
func (s *MemoryStore) SetItemChecked(ctx context.Context, basketID, itemID string, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return ErrNotFound
	}
	for i := range b.Items {
		if b.Items[i].ID == itemID {
			b.Items[i].Checked = checked
			b.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// ClearChecked deletes every checked item. Recipe entries are untouched even
// when their last item goes.
func (s *MemoryStore) ClearChecked(ctx context.Context, basketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return ErrNotFound
	}
	kept := b.Items[:0:0]
	for _, it := range b.Items {
		if !it.Checked {
			kept = append(kept, it)
		}
	}
	b.Items = kept
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearAll empties the basket.
func (s *MemoryStore) ClearAll(ctx context.Context, basketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return ErrNotFound
	}
	b.Recipes = nil
	b.Items = nil
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func copyBasket(b *Basket) *Basket {
	out := &Basket{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Recipes:   append([]RecipeEntry(nil), b.Recipes...),
		Items:     make([]Item, len(b.Items)),
	}
	for i, it := range b.Items {
		it.RecipeIDs = append([]string(nil), it.RecipeIDs...)
		if it.Amount != nil {
			amount := *it.Amount
			it.Amount = &amount
		}
		out.Items[i] = it
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
