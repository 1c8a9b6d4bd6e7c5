// Package basket implements the grocery-basket engine: ingredient
// aggregation, shopping categories, the basket store, and the stable
// display projection.
package basket

import (
	"context"
	"errors"
	"time"

	"forkful/internal/recipe"
)

// ErrNotFound is returned when a referenced basket or item does not exist.
var ErrNotFound = errors.New("not found")

// RecipeEntry is a recipe's membership in a basket. Servings is mutable;
// OriginalServings is the count the recipe's amounts were authored for.
type RecipeEntry struct {
	RecipeID         string `json:"recipe_id" db:"recipe_id"`
	Title            string `json:"title" db:"title"`
	Servings         int    `json:"servings" db:"servings"`
	OriginalServings int    `json:"original_servings" db:"original_servings"`
}

// Item is one deduplicated shopping-list line, possibly contributed by
// multiple recipes. An item whose contributor set would become empty is
// deleted, never kept.
type Item struct {
	ID        string   `json:"id" db:"id"`
	Name      string   `json:"name" db:"name"`
	Amount    *float64 `json:"amount,omitempty" db:"amount"`
	Unit      string   `json:"unit,omitempty" db:"unit"`
	Category  Category `json:"category" db:"category"`
	Checked   bool     `json:"checked" db:"checked"`
	RecipeIDs []string `json:"recipe_ids"`
}

// Basket is the in-progress shopping list.
type Basket struct {
	ID        string        `json:"id"`
	Recipes   []RecipeEntry `json:"recipes"`
	Items     []Item        `json:"items"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RecipeSnapshot is the slice of a recipe the basket needs when a recipe is
// added: identity, display title, authored servings, and the ingredient list.
type RecipeSnapshot struct {
	ID          string
	Title       string
	Servings    int
	Ingredients []recipe.Ingredient
}

func (s *RecipeSnapshot) validate() error {
	if s.ID == "" {
		return &recipe.ValidationError{Reason: "recipe snapshot has no id"}
	}
	if s.Servings < 1 {
		return &recipe.ValidationError{Reason: "recipe snapshot has no servings"}
	}
	if s.Ingredients == nil {
		return &recipe.ValidationError{Reason: "recipe snapshot has no ingredient list"}
	}
	return nil
}

// Store owns the canonical basket state. Every mutation either fully applies
// or fully fails; no call may leave an item without contributors or a recipe
// entry without its items.
type Store interface {
	// Current resolves the active basket, creating one lazily if none exists.
	Current(ctx context.Context) (*Basket, error)
	// Snapshot returns the basket read-only.
	Snapshot(ctx context.Context, basketID string) (*Basket, error)
	// AddRecipe adds a recipe at the given servings, merging its expanded
	// ingredients into the item set by (name, unit). If the recipe is already
	// present only its servings are updated; existing items are not rescaled.
	AddRecipe(ctx context.Context, basketID string, snap RecipeSnapshot, servings int) error
	// RemoveRecipe removes a recipe and its sole-contribution items.
	// Removing an absent recipe is a no-op.
	RemoveRecipe(ctx context.Context, basketID, recipeID string) error
	// SetItemChecked sets an item's checked flag.
	SetItemChecked(ctx context.Context, basketID, itemID string, checked bool) error
	// ClearChecked deletes every checked item, regardless of contributors.
	ClearChecked(ctx context.Context, basketID string) error
	// ClearAll deletes every item and every recipe entry.
	ClearAll(ctx context.Context, basketID string) error
}
