// Package gemini implements the recipe extraction and translation
// collaborators on top of the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"forkful/internal/recipe"
)

// maxPageBytes caps how much of a fetched page is handed to the model.
const maxPageBytes = 100_000

const extractionSchema = `Return ONLY a JSON object with the following structure:
{
  "title": "Recipe Title",
  "description": "Brief description of the recipe",
  "image_url": "URL to the main recipe image if available, or empty string",
  "source_url": "Original URL of the recipe",
  "tags": ["tag1", "tag2"],
  "ingredients": [
    {"name": "ingredient name", "amount": number or null, "unit": "unit or empty string", "notes": "notes or empty string"}
  ],
  "steps": ["step 1 instruction", "step 2 instruction"],
  "prep_time": number in minutes or null,
  "cook_time": number in minutes or null,
  "servings": number of servings (use 4 if unstated)
}
The JSON response should be clean and not contain any markdown formatting (e.g., ` + "```json" + `).
If the content does not contain a recipe, respond with exactly NO_RECIPE.`

// Client is a client for the Gemini API.
type Client struct {
	model      *genai.GenerativeModel
	httpClient *http.Client
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{
		model:      client.GenerativeModel(modelName),
		httpClient: &http.Client{},
	}, nil
}

// ExtractRecipe fetches a web page and extracts a structured recipe from it.
// When the page holds no recipe (or the model's reply cannot be parsed into
// one) the not-found sentinel recipe is returned with a nil error; callers
// must check for it explicitly.
func (c *Client) ExtractRecipe(ctx context.Context, url string) (*recipe.Recipe, error) {
	html, err := c.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	prompt := []genai.Part{
		genai.Text("You are a recipe extraction expert. Extract the complete recipe from the HTML content provided. " + extractionSchema),
		genai.Text("Extract the recipe from this HTML: " + html),
	}
	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini extraction failed: %w", err)
	}

	if strings.Contains(strings.ToUpper(text), "NO_RECIPE") {
		return recipe.NotFoundSentinel(url), nil
	}

	r, err := recipe.ParseExternal([]byte(text))
	if err != nil {
		return recipe.NotFoundSentinel(url), nil
	}
	r.SourceURL = url
	return r, nil
}

// TranslateRecipe translates a recipe's text fields. The reply may be
// missing fields; the caller must not assume all four are present.
func (c *Client) TranslateRecipe(ctx context.Context, r *recipe.Recipe, targetLanguage string) (*recipe.Translation, error) {
	if targetLanguage == "" {
		targetLanguage = "French"
	}

	var ingredients strings.Builder
	for _, ing := range r.Ingredients {
		amount := ""
		if ing.Amount != nil {
			amount = fmt.Sprintf("%g ", *ing.Amount)
		}
		line := fmt.Sprintf("- %s%s %s", amount, ing.Unit, ing.Name)
		if ing.Notes != "" {
			line += fmt.Sprintf(" (%s)", ing.Notes)
		}
		ingredients.WriteString(line + "\n")
	}

	promptText := fmt.Sprintf(`You are a professional culinary translator specializing in %[1]s. Translate the following recipe to %[1]s:

Title: %[2]s

Description: %[3]s

Ingredients:
%[4]s
Instructions:
%[5]s

Format your response as a clean JSON object with these properties, without markdown formatting:
{
  "translatedTitle": "title in %[1]s",
  "translatedDescription": "description in %[1]s",
  "translatedIngredients": [{"name": "...", "amount": number, "unit": "...", "notes": "..."}],
  "translatedSteps": ["step 1 in %[1]s"]
}

Keep all measurements the same, just translate the text.`,
		targetLanguage, r.Title, r.Description, ingredients.String(), strings.Join(r.Steps, "\n"))

	text, err := c.generate(ctx, []genai.Part{genai.Text(promptText)})
	if err != nil {
		return nil, fmt.Errorf("gemini translation failed: %w", err)
	}

	startIndex := strings.Index(text, "{")
	endIndex := strings.LastIndex(text, "}")
	if startIndex == -1 || endIndex == -1 || startIndex > endIndex {
		return nil, fmt.Errorf("could not find JSON object in response: %s", text)
	}

	var tr recipe.Translation
	if err := json.Unmarshal([]byte(text[startIndex:endIndex+1]), &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal translation JSON: %w", err)
	}
	return &tr, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch webpage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch webpage: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read webpage: %w", err)
	}
	return string(body), nil
}

func (c *Client) generate(ctx context.Context, prompt []genai.Part) (string, error) {
	resp, err := c.model.GenerateContent(ctx, prompt...)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return strings.TrimSpace(string(text)), nil
}
