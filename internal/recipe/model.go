package recipe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SentinelTitle marks a recipe-shaped record returned by an extractor that
// could not find a recipe. Callers must check IsNotFound explicitly; the
// absence of an error is not success.
const SentinelTitle = "Recipe Not Found"

// Ingredient is one line of a recipe's ingredient list. A nil Amount means
// the ingredient is unscaled ("to taste").
type Ingredient struct {
	Name   string   `json:"name" validate:"required"`
	Amount *float64 `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Unit   string   `json:"unit,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

// Recipe represents a stored recipe.
type Recipe struct {
	ID          string       `json:"id" db:"id"`
	Title       string       `json:"title" db:"title" validate:"required"`
	Description string       `json:"description" db:"description"`
	ImageURL    string       `json:"image_url" db:"image_url"`
	SourceURL   string       `json:"source_url" db:"source_url"`
	Tags        []string     `json:"tags"`
	Ingredients []Ingredient `json:"ingredients" validate:"required,dive"`
	Steps       []string     `json:"steps" validate:"required"`
	PrepTime    *int         `json:"prep_time,omitempty" db:"prep_time"`
	CookTime    *int         `json:"cook_time,omitempty" db:"cook_time"`
	Servings    int          `json:"servings" db:"servings" validate:"required,gte=1"`

	TranslatedTitle       string       `json:"translated_title,omitempty" db:"translated_title"`
	TranslatedDescription string       `json:"translated_description,omitempty" db:"translated_description"`
	TranslatedIngredients []Ingredient `json:"translated_ingredients,omitempty"`
	TranslatedSteps       []string     `json:"translated_steps,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Translation holds the translated text fields of a recipe. Any field may be
// empty; callers must not assume the translator filled all four.
type Translation struct {
	TranslatedTitle       string       `json:"translatedTitle"`
	TranslatedDescription string       `json:"translatedDescription"`
	TranslatedIngredients []Ingredient `json:"translatedIngredients"`
	TranslatedSteps       []string     `json:"translatedSteps"`
}

// Tag is a recipe label with a store-maintained reference count.
type Tag struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	RecipeCount int       `json:"recipe_count" db:"recipe_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ValidationError reports a malformed recipe payload. It is returned before
// any mutation takes place.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recipe: %s", e.Reason)
}

// NotFoundSentinel builds the recipe-shaped "not found" record an extractor
// returns when the page holds no recipe.
func NotFoundSentinel(sourceURL string) *Recipe {
	return &Recipe{
		Title:       SentinelTitle,
		SourceURL:   sourceURL,
		Ingredients: []Ingredient{},
		Steps:       []string{},
		Servings:    1,
	}
}

// IsNotFound reports whether r is the extraction sentinel.
func IsNotFound(r *Recipe) bool {
	return r != nil && r.Title == SentinelTitle && len(r.Ingredients) == 0 && len(r.Steps) == 0
}

var validate = validator.New()

// ParseExternal converts untrusted JSON from an extractor or a pasted LLM
// response into a Recipe, or fails with a ValidationError. The payload may be
// wrapped in markdown fences or surrounding prose; only the outermost JSON
// object is considered.
func ParseExternal(data []byte) (*Recipe, error) {
	text := string(data)
	startIndex := strings.Index(text, "{")
	endIndex := strings.LastIndex(text, "}")
	if startIndex == -1 || endIndex == -1 || startIndex > endIndex {
		return nil, &ValidationError{Reason: "no JSON object found in payload"}
	}

	var r Recipe
	if err := json.Unmarshal([]byte(text[startIndex:endIndex+1]), &r); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if err := validate.Struct(&r); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if len(r.Ingredients) == 0 {
		return nil, &ValidationError{Reason: "ingredient list is empty"}
	}

	// Never trust external identifiers or timestamps.
	r.ID = ""
	r.CreatedAt = time.Time{}
	r.UpdatedAt = time.Time{}

	if r.Tags == nil {
		r.Tags = []string{}
	}

	return &r, nil
}
