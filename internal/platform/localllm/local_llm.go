// Package localllm implements the extraction and translation collaborators
// against a local OpenAI-compatible chat-completions endpoint.
package localllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"forkful/internal/recipe"
)

const maxPageBytes = 100_000

// Client represents a client for the local LLM.
type Client struct {
	httpClient *http.Client
	apiURL     string
	model      string
}

// NewClient creates a new client for the local LLM.
func NewClient(apiURL, model string) *Client {
	if apiURL == "" {
		apiURL = "http://localhost:1234/v1/chat/completions"
	}
	if model == "" {
		model = "gemma-3-12b-it:2"
	}
	return &Client{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		model:      model,
	}
}

// Request represents the request body for the local LLM.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message represents a message in the request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents the response from the local LLM.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage represents a message in the response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateContent sends a chat completion request and returns the reply text.
func (c *Client) GenerateContent(ctx context.Context, system, user string) (string, error) {
	reqBody := Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-OK status code: %d", resp.StatusCode)
	}

	var llmResp Response
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(llmResp.Choices) == 0 {
		return "", fmt.Errorf("no content found in response")
	}
	return strings.TrimSpace(llmResp.Choices[0].Message.Content), nil
}

// ExtractRecipe fetches a web page and extracts a structured recipe from it.
// A page with no recipe yields the not-found sentinel with a nil error.
func (c *Client) ExtractRecipe(ctx context.Context, url string) (*recipe.Recipe, error) {
	html, err := c.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	system := `You are a recipe extraction expert. Extract the complete recipe from the HTML content provided. Return ONLY a clean JSON object with the keys: 'title' (string), 'description' (string), 'image_url' (string), 'tags' (array of strings), 'ingredients' (array of {name, amount, unit, notes}), 'steps' (array of strings), 'prep_time' (minutes or null), 'cook_time' (minutes or null), 'servings' (number, 4 if unstated). No markdown formatting. If the content does not contain a recipe, respond with exactly NO_RECIPE.`

	text, err := c.GenerateContent(ctx, system, "Extract the recipe from this HTML: "+html)
	if err != nil {
		return nil, fmt.Errorf("local llm extraction failed: %w", err)
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

// TranslateRecipe translates a recipe's text fields.
func (c *Client) TranslateRecipe(ctx context.Context, r *recipe.Recipe, targetLanguage string) (*recipe.Translation, error) {
	if targetLanguage == "" {
		targetLanguage = "French"
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipe: %w", err)
	}

	system := fmt.Sprintf("You are a professional culinary translator specializing in %s. Accurately translate recipes while preserving recipe structure and formatting.", targetLanguage)
	user := fmt.Sprintf(`Translate this recipe to %s. Respond with a clean JSON object holding 'translatedTitle', 'translatedDescription', 'translatedIngredients' (array of {name, amount, unit, notes}) and 'translatedSteps' (array of strings). Keep all measurements the same, just translate the text. Recipe: %s`, targetLanguage, payload)

	text, err := c.GenerateContent(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("local llm translation failed: %w", err)
	}

	startIndex := strings.Index(text, "{")
	endIndex := strings.LastIndex(text, "}")
	if startIndex == -1 || endIndex == -1 || startIndex > endIndex {
		return nil, fmt.Errorf("could not find JSON object in response: %s", text)
	}

	var tr recipe.Translation
	if err := json.Unmarshal([]byte(text[startIndex:endIndex+1]), &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal translation from response: %w", err)
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
