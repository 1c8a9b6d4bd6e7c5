package recipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExternal(t *testing.T) {
	raw := `{"title": "Soup", "servings": 2, "ingredients": [{"name": "carrot", "amount": 3}], "steps": ["Chop", "Simmer"]}`

	r, err := ParseExternal([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Soup", r.Title)
	assert.Equal(t, 2, r.Servings)
	require.Len(t, r.Ingredients, 1)
	assert.Equal(t, 3.0, *r.Ingredients[0].Amount)
	assert.NotNil(t, r.Tags, "tags default to an empty list, not null")
}

func TestParseExternal_StripsSurroundingText(t *testing.T) {
	raw := "Sure! Here is the recipe:\n```json\n" +
		`{"title": "Soup", "servings": 2, "ingredients": [{"name": "carrot"}], "steps": ["Chop"]}` +
		"\n```\nLet me know if you need anything else."

	r, err := ParseExternal([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Soup", r.Title)
	assert.Nil(t, r.Ingredients[0].Amount)
}

func TestParseExternal_IgnoresExternalIdentity(t *testing.T) {
	raw := `{"id": "evil", "created_at": "2020-01-01T00:00:00Z", "title": "Soup", "servings": 2, "ingredients": [{"name": "carrot"}], "steps": ["Chop"]}`

	r, err := ParseExternal([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, r.ID)
	assert.Equal(t, time.Time{}, r.CreatedAt)
}

func TestParseExternal_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json object", "NO_RECIPE"},
		{"malformed json", `{"title": "Soup",`},
		{"missing title", `{"servings": 2, "ingredients": [{"name": "carrot"}], "steps": ["Chop"]}`},
		{"missing steps", `{"title": "Soup", "servings": 2, "ingredients": [{"name": "carrot"}]}`},
		{"zero servings", `{"title": "Soup", "servings": 0, "ingredients": [{"name": "carrot"}], "steps": ["Chop"]}`},
		{"empty ingredients", `{"title": "Soup", "servings": 2, "ingredients": [], "steps": ["Chop"]}`},
		{"unnamed ingredient", `{"title": "Soup", "servings": 2, "ingredients": [{"amount": 3}], "steps": ["Chop"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExternal([]byte(tt.raw))
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestNotFoundSentinel(t *testing.T) {
	s := NotFoundSentinel("https://example.com/page")
	assert.True(t, IsNotFound(s))
	assert.Equal(t, "https://example.com/page", s.SourceURL)
	assert.NotNil(t, s.Ingredients)
	assert.NotNil(t, s.Steps)
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))

	// A real recipe that happens to use the sentinel title is not a
	// sentinel as long as it has content.
	r := &Recipe{
		Title:       SentinelTitle,
		Servings:    2,
		Ingredients: []Ingredient{{Name: "carrot"}},
		Steps:       []string{"Chop"},
	}
	assert.False(t, IsNotFound(r))
}
