package basket

import "forkful/internal/recipe"

// ProposedItem is one grocery line produced by expanding a recipe's
// ingredient list at a serving scale. Merging against existing basket items
// is the store's responsibility, not the aggregator's.
type ProposedItem struct {
	Name     string
	Amount   *float64
	Unit     string
	Category Category
	RecipeID string
}

// Aggregator expands recipes into proposed grocery lines.
type Aggregator struct {
	classifier *Classifier
}

// NewAggregator creates an aggregator using the given classifier, or the
// built-in one when nil.
func NewAggregator(c *Classifier) *Aggregator {
	if c == nil {
		c = defaultClassifier
	}
	return &Aggregator{classifier: c}
}

// ExpandRecipe produces one ProposedItem per ingredient, order-preserving,
// with amounts scaled by currentServings/originalServings and categories
// assigned from the ingredient name. Side-effect-free.
func (a *Aggregator) ExpandRecipe(ingredients []recipe.Ingredient, currentServings, originalServings int, recipeID string) []ProposedItem {
	ratio := Ratio(currentServings, originalServings)
	items := make([]ProposedItem, 0, len(ingredients))
	for _, ing := range ingredients {
		items = append(items, ProposedItem{
			Name:     ing.Name,
			Amount:   Scale(ing.Amount, ratio),
			Unit:     ing.Unit,
			Category: a.classifier.Classify(ing.Name),
			RecipeID: recipeID,
		})
	}
	return items
}
