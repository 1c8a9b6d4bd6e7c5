package localllm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkful/internal/recipe"
)

func completionServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)

		resp := Response{Choices: []Choice{{Message: ResponseMessage{Role: "assistant", Content: reply}}}}
		json.NewEncoder(w).Encode(resp)
	}))
}

func pageServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func TestExtractRecipe(t *testing.T) {
	llm := completionServer(t, `{"title": "Soup", "servings": 2, "ingredients": [{"name": "carrot", "amount": 3}], "steps": ["Chop", "Simmer"]}`)
	defer llm.Close()
	page := pageServer("<html><body>carrot soup</body></html>")
	defer page.Close()

	c := NewClient(llm.URL, "test-model")
	r, err := c.ExtractRecipe(context.Background(), page.URL)
	require.NoError(t, err)
	assert.False(t, recipe.IsNotFound(r))
	assert.Equal(t, "Soup", r.Title)
	assert.Equal(t, page.URL, r.SourceURL)
}

func TestExtractRecipe_NoRecipeReply(t *testing.T) {
	llm := completionServer(t, "NO_RECIPE")
	defer llm.Close()
	page := pageServer("<html><body>a blog post about nothing</body></html>")
	defer page.Close()

	c := NewClient(llm.URL, "test-model")
	r, err := c.ExtractRecipe(context.Background(), page.URL)
	require.NoError(t, err)
	assert.True(t, recipe.IsNotFound(r))
	assert.Equal(t, page.URL, r.SourceURL)
}

func TestExtractRecipe_UnparseableReply(t *testing.T) {
	// A reply the parser rejects is treated the same as no recipe.
	llm := completionServer(t, `{"title": "Broken", "ingredients": []}`)
	defer llm.Close()
	page := pageServer("<html></html>")
	defer page.Close()

	c := NewClient(llm.URL, "test-model")
	r, err := c.ExtractRecipe(context.Background(), page.URL)
	require.NoError(t, err)
	assert.True(t, recipe.IsNotFound(r))
}

func TestExtractRecipe_PageFetchError(t *testing.T) {
	llm := completionServer(t, "NO_RECIPE")
	defer llm.Close()
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer page.Close()

	c := NewClient(llm.URL, "test-model")
	_, err := c.ExtractRecipe(context.Background(), page.URL)
	assert.Error(t, err)
}

func TestTranslateRecipe(t *testing.T) {
	llm := completionServer(t, "Here you go:\n"+
		`{"translatedTitle": "Soupe", "translatedSteps": ["Couper", "Mijoter"]}`)
	defer llm.Close()

	c := NewClient(llm.URL, "test-model")
	r := &recipe.Recipe{
		Title:       "Soup",
		Servings:    2,
		Ingredients: []recipe.Ingredient{{Name: "carrot"}},
		Steps:       []string{"Chop", "Simmer"},
	}

	tr, err := c.TranslateRecipe(context.Background(), r, "")
	require.NoError(t, err)
	assert.Equal(t, "Soupe", tr.TranslatedTitle)
	assert.Equal(t, []string{"Couper", "Mijoter"}, tr.TranslatedSteps)
}

func TestTranslateRecipe_NoJSONInReply(t *testing.T) {
	llm := completionServer(t, "I could not translate that.")
	defer llm.Close()

	c := NewClient(llm.URL, "test-model")
	r := &recipe.Recipe{Title: "Soup", Servings: 2, Ingredients: []recipe.Ingredient{{Name: "carrot"}}, Steps: []string{"Chop"}}

	_, err := c.TranslateRecipe(context.Background(), r, "French")
	assert.Error(t, err)
}

func TestGenerateContent_EmptyChoices(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{})
	}))
	defer llm.Close()

	c := NewClient(llm.URL, "test-model")
	_, err := c.GenerateContent(context.Background(), "system", "user")
	assert.Error(t, err)
}
