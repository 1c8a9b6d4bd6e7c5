package basket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkful/internal/recipe"
)

func TestExpandRecipe(t *testing.T) {
	flour := 200.0
	milk := 300.0
	ingredients := []recipe.Ingredient{
		{Name: "flour", Amount: &flour, Unit: "g"},
		{Name: "milk", Amount: &milk, Unit: "ml"},
		{Name: "salt", Notes: "to taste"},
	}

	agg := NewAggregator(nil)
	items := agg.ExpandRecipe(ingredients, 8, 4, "recipe-1")
	require.Len(t, items, 3)

	// Order follows the ingredient list.
	assert.Equal(t, "flour", items[0].Name)
	assert.Equal(t, "milk", items[1].Name)
	assert.Equal(t, "salt", items[2].Name)

	assert.Equal(t, 400.0, *items[0].Amount)
	assert.Equal(t, "g", items[0].Unit)
	assert.Equal(t, CategoryGrains, items[0].Category)
	assert.Equal(t, "recipe-1", items[0].RecipeID)

	assert.Equal(t, 600.0, *items[1].Amount)
	assert.Equal(t, CategoryDairy, items[1].Category)

	// "To taste" amounts stay nil at any scale.
	assert.Nil(t, items[2].Amount)
	assert.Equal(t, CategorySpices, items[2].Category)
}

func TestExpandRecipe_DoesNotMutateInput(t *testing.T) {
	flour := 200.0
	ingredients := []recipe.Ingredient{{Name: "flour", Amount: &flour, Unit: "g"}}

	NewAggregator(nil).ExpandRecipe(ingredients, 8, 4, "recipe-1")
	assert.Equal(t, 200.0, *ingredients[0].Amount)
}
