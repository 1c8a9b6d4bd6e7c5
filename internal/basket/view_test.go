package basket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewItem(id, name string, cat Category, recipeIDs ...string) Item {
	return Item{ID: id, Name: name, Category: cat, RecipeIDs: recipeIDs}
}

func snapshotWith(items ...Item) *Basket {
	return &Basket{ID: "b1", Items: items}
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestReconcile_AdoptsInitialOrder(t *testing.T) {
	p := NewProjection()
	p.Reconcile(snapshotWith(
		viewItem("a", "apples", CategoryFruits, "r1"),
		viewItem("b", "bread", CategoryGrains, "r1"),
		viewItem("c", "cream", CategoryDairy, "r1"),
	))
	assert.Equal(t, []string{"a", "b", "c"}, ids(p.Items()))
}

func TestReconcile_KeepsSurvivorsAppendsNew(t *testing.T) {
	p := NewProjection()
	p.Reconcile(snapshotWith(
		viewItem("a", "apples", CategoryFruits, "r1"),
		viewItem("b", "bread", CategoryGrains, "r1"),
		viewItem("c", "cream", CategoryDairy, "r1"),
	))

	// "a" disappeared, "d" is new. Survivors stay in place, the new id
	// appends, regardless of the order the store returned.
	p.Reconcile(snapshotWith(
		viewItem("d", "dates", CategoryFruits, "r2"),
		viewItem("c", "cream", CategoryDairy, "r1"),
		viewItem("b", "bread", CategoryGrains, "r1"),
	))
	assert.Equal(t, []string{"b", "c", "d"}, ids(p.Items()))

	p.Reconcile(snapshotWith(
		viewItem("d", "dates", CategoryFruits, "r2"),
		viewItem("b", "bread", CategoryGrains, "r1"),
	))
	assert.Equal(t, []string{"b", "d"}, ids(p.Items()))
}

func TestReconcile_PicksUpFieldChanges(t *testing.T) {
	p := NewProjection()
	p.Reconcile(snapshotWith(viewItem("a", "apples", CategoryFruits, "r1")))

	updated := viewItem("a", "apples", CategoryFruits, "r1")
	updated.Checked = true
	p.Reconcile(snapshotWith(updated))

	items := p.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Checked)
}

func TestByCategory(t *testing.T) {
	p := NewProjection()
	p.Reconcile(snapshotWith(
		viewItem("a", "milk", CategoryDairy, "r1"),
		viewItem("b", "bread", CategoryGrains, "r1"),
		viewItem("c", "cheese", CategoryDairy, "r1"),
		viewItem("d", "mystery", "", "r1"),
	))

	groups := p.ByCategory()
	require.Len(t, groups, 3)

	// Buckets are alphabetical; items keep remembered order inside one.
	assert.Equal(t, CategoryDairy, groups[0].Category)
	assert.Equal(t, []string{"a", "c"}, ids(groups[0].Items))
	assert.Equal(t, CategoryGrains, groups[1].Category)
	// An item without a category lands in Other.
	assert.Equal(t, CategoryOther, groups[2].Category)
	assert.Equal(t, []string{"d"}, ids(groups[2].Items))
}

func TestByRecipe_FansOutSharedItems(t *testing.T) {
	p := NewProjection()
	b := snapshotWith(
		viewItem("a", "flour", CategoryGrains, "pancakes", "bread"),
		viewItem("b", "milk", CategoryDairy, "pancakes"),
		viewItem("c", "yeast", CategoryOther, "bread"),
	)
	b.Recipes = []RecipeEntry{
		{RecipeID: "pancakes", Title: "Pancakes"},
		{RecipeID: "bread", Title: "Bread"},
	}
	p.Reconcile(b)

	groups := p.ByRecipe()
	require.Len(t, groups, 2)

	// Buckets appear in order of first contribution; the shared flour
	// item shows up once in each bucket.
	assert.Equal(t, "pancakes", groups[0].RecipeID)
	assert.Equal(t, "Pancakes", groups[0].Title)
	assert.Equal(t, []string{"a", "b"}, ids(groups[0].Items))

	assert.Equal(t, "bread", groups[1].RecipeID)
	assert.Equal(t, []string{"a", "c"}, ids(groups[1].Items))
}

func TestFilter(t *testing.T) {
	p := NewProjection()
	p.Reconcile(snapshotWith(
		viewItem("a", "Whole Milk", CategoryDairy, "r1"),
		viewItem("b", "bread", CategoryGrains, "r1"),
		viewItem("c", "milk chocolate", CategoryOther, "r1"),
	))

	matched := p.Filter("MILK")
	assert.Equal(t, []string{"a", "c"}, ids(matched))

	assert.Empty(t, p.Filter("saffron"))

	// Filtering is read-only: the remembered order is intact after.
	assert.Equal(t, []string{"a", "b", "c"}, ids(p.Items()))
}
