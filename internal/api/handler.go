package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"forkful/internal/basket"
	"forkful/internal/recipe"
)

const (
	dbTimeout       = 5 * time.Second
	externalTimeout = 45 * time.Second
)

// Extractor turns a public recipe page into a structured recipe. A page
// with no recipe yields the not-found sentinel, not an error.
type Extractor interface {
	ExtractRecipe(ctx context.Context, url string) (*recipe.Recipe, error)
}

// Translator produces a stored translation for a recipe.
type Translator interface {
	TranslateRecipe(ctx context.Context, r *recipe.Recipe, targetLanguage string) (*recipe.Translation, error)
}

// RecipeStore is the slice of the recipe store the handlers use.
type RecipeStore interface {
	SaveRecipe(ctx context.Context, r *recipe.Recipe) (*recipe.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*recipe.Recipe, error)
	ListRecipes(ctx context.Context) ([]*recipe.Recipe, error)
	UpdateRecipe(ctx context.Context, r *recipe.Recipe) error
	DeleteRecipe(ctx context.Context, id string) error
	SaveTranslation(ctx context.Context, id string, tr *recipe.Translation) error
	ListTags(ctx context.Context) ([]*recipe.Tag, error)
	CreateTag(ctx context.Context, name string) (*recipe.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// BasketStore is the slice of the basket store the handlers use.
type BasketStore interface {
	Current(ctx context.Context) (*basket.Basket, error)
	Snapshot(ctx context.Context, basketID string) (*basket.Basket, error)
	AddRecipe(ctx context.Context, basketID string, snap basket.RecipeSnapshot, servings int) error
	RemoveRecipe(ctx context.Context, basketID, recipeID string) error
	SetItemChecked(ctx context.Context, basketID, itemID string, checked bool) error
	ClearChecked(ctx context.Context, basketID string) error
	ClearAll(ctx context.Context, basketID string) error
}

// Handler handles HTTP requests.
type Handler struct {
	Extractor   Extractor
	Translator  Translator
	RecipeStore RecipeStore
	BasketStore BasketStore
	Images      *ImageCache
	Log         *zap.SugaredLogger

	mu          sync.Mutex
	projections map[string]*basket.Projection
}

// NewHandler creates a new Handler.
func NewHandler(extractor Extractor, translator Translator, recipes RecipeStore, baskets BasketStore, images *ImageCache, log *zap.SugaredLogger) *Handler {
	return &Handler{
		Extractor:   extractor,
		Translator:  translator,
		RecipeStore: recipes,
		BasketStore: baskets,
		Images:      images,
		Log:         log,
		projections: make(map[string]*basket.Projection),
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/recipes/extract", h.ExtractRecipe)
	r.POST("/recipes", h.CreateRecipe)
	r.GET("/recipes", h.ListRecipes)
	r.GET("/recipes/:id", h.GetRecipe)
	r.PUT("/recipes/:id", h.UpdateRecipe)
	r.DELETE("/recipes/:id", h.DeleteRecipe)
	r.POST("/recipes/:id/translate", h.TranslateRecipe)

	r.GET("/tags", h.ListTags)
	r.POST("/tags", h.CreateTag)
	r.DELETE("/tags/:id", h.DeleteTag)

	r.GET("/basket", h.GetBasket)
	r.DELETE("/basket", h.ClearBasket)
	r.POST("/basket/recipes", h.AddBasketRecipe)
	r.DELETE("/basket/recipes/:id", h.RemoveBasketRecipe)
	r.PATCH("/basket/items/:id", h.SetItemChecked)
	r.POST("/basket/items/check-all", h.CheckAllItems)
	r.DELETE("/basket/items/checked", h.ClearCheckedItems)
	r.GET("/basket/view", h.BasketView)
}

// ExtractRecipe fetches a recipe page and extracts a structured recipe
// from it. The recipe is returned unsaved so the client can review it
// before saving.
func (h *Handler) ExtractRecipe(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid url is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), externalTimeout)
	defer cancel()

	r, err := h.Extractor.ExtractRecipe(ctx, req.URL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "recipe extraction timed out"})
			return
		}
		h.Log.Errorw("recipe extraction failed", "url", req.URL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to extract recipe"})
		return
	}
	if recipe.IsNotFound(r) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recipe found at this URL"})
		return
	}
	c.JSON(http.StatusOK, r)
}

// CreateRecipe stores a recipe. The body may be clean JSON or raw model
// output with prose around the JSON object; both go through the same
// parse and validation boundary.
func (h *Handler) CreateRecipe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	r, err := recipe.ParseExternal(body)
	if err != nil {
		var verr *recipe.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body is not a recipe"})
		return
	}

	if h.Images != nil && r.ImageURL != "" {
		if local, err := h.Images.CacheRemote(c.Request.Context(), r.ImageURL); err != nil {
			h.Log.Warnw("image caching failed", "url", r.ImageURL, "error", err)
		} else {
			r.ImageURL = local
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	saved, err := h.RecipeStore.SaveRecipe(ctx, r)
	if err != nil {
		h.Log.Errorw("failed to save recipe", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save recipe"})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// ListRecipes returns all recipes, newest first. An optional ?tag=
// query narrows the list to recipes carrying that tag.
func (h *Handler) ListRecipes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	recipes, err := h.RecipeStore.ListRecipes(ctx)
	if err != nil {
		h.Log.Errorw("failed to list recipes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recipes"})
		return
	}

	if tag := c.Query("tag"); tag != "" {
		filtered := make([]*recipe.Recipe, 0, len(recipes))
		for _, r := range recipes {
			for _, t := range r.Tags {
				if t == tag {
					filtered = append(filtered, r)
					break
				}
			}
		}
		recipes = filtered
	}
	c.JSON(http.StatusOK, recipes)
}

func (h *Handler) GetRecipe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	r, err := h.RecipeStore.GetRecipe(ctx, c.Param("id"))
	if err != nil {
		h.Log.Errorw("failed to get recipe", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get recipe"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateRecipe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	r, err := recipe.ParseExternal(body)
	if err != nil {
		var verr *recipe.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body is not a recipe"})
		return
	}
	r.ID = c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	if err := h.RecipeStore.UpdateRecipe(ctx, r); err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
			return
		}
		h.Log.Errorw("failed to update recipe", "id", r.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update recipe"})
		return
	}

	updated, err := h.RecipeStore.GetRecipe(ctx, r.ID)
	if err != nil || updated == nil {
		c.JSON(http.StatusOK, r)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteRecipe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	if err := h.RecipeStore.DeleteRecipe(ctx, c.Param("id")); err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
			return
		}
		h.Log.Errorw("failed to delete recipe", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete recipe"})
		return
	}
	c.Status(http.StatusNoContent)
}

// TranslateRecipe translates a stored recipe and persists the result
// alongside it.
func (h *Handler) TranslateRecipe(c *gin.Context) {
	var req struct {
		TargetLanguage string `json:"target_language"`
	}
	// The body is optional; the translator defaults the language.
	_ = c.ShouldBindJSON(&req)

	ctx, cancel := context.WithTimeout(c.Request.Context(), externalTimeout)
	defer cancel()

	r, err := h.RecipeStore.GetRecipe(ctx, c.Param("id"))
	if err != nil {
		h.Log.Errorw("failed to get recipe", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get recipe"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}

	t, err := h.Translator.TranslateRecipe(ctx, r, req.TargetLanguage)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "translation timed out"})
			return
		}
		h.Log.Errorw("translation failed", "id", r.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to translate recipe"})
		return
	}

	if err := h.RecipeStore.SaveTranslation(ctx, r.ID, t); err != nil {
		h.Log.Errorw("failed to save translation", "id", r.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save translation"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTags(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	tags, err := h.RecipeStore.ListTags(ctx)
	if err != nil {
		h.Log.Errorw("failed to list tags", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tags"})
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *Handler) CreateTag(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag name is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	tag, err := h.RecipeStore.CreateTag(ctx, req.Name)
	if err != nil {
		h.Log.Errorw("failed to create tag", "name", req.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tag"})
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// DeleteTag removes a tag and strips it from every recipe that carries
// it, so no recipe is left pointing at a deleted tag.
func (h *Handler) DeleteTag(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	if err := h.RecipeStore.DeleteTag(ctx, c.Param("id")); err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
			return
		}
		h.Log.Errorw("failed to delete tag", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete tag"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetBasket(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// AddBasketRecipe adds a recipe's ingredients to the basket, scaled to
// the requested servings. Adding a recipe that is already in the basket
// only updates its servings.
func (h *Handler) AddBasketRecipe(c *gin.Context) {
	var req struct {
		RecipeID string `json:"recipe_id" binding:"required"`
		Servings int    `json:"servings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipe_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	r, err := h.RecipeStore.GetRecipe(ctx, req.RecipeID)
	if err != nil {
		h.Log.Errorw("failed to get recipe", "id", req.RecipeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get recipe"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	snap := basket.RecipeSnapshot{
		ID:          r.ID,
		Title:       r.Title,
		Servings:    r.Servings,
		Ingredients: r.Ingredients,
	}
	if err := h.BasketStore.AddRecipe(ctx, b.ID, snap, req.Servings); err != nil {
		var verr *recipe.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		h.Log.Errorw("failed to add recipe to basket", "id", req.RecipeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add recipe to basket"})
		return
	}
	h.respondBasket(c, ctx, b.ID)
}

// RemoveBasketRecipe removes a recipe's contribution from the basket.
// Removing a recipe that is not in the basket is a no-op.
func (h *Handler) RemoveBasketRecipe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	if err := h.BasketStore.RemoveRecipe(ctx, b.ID, c.Param("id")); err != nil {
		h.Log.Errorw("failed to remove recipe from basket", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove recipe from basket"})
		return
	}
	h.respondBasket(c, ctx, b.ID)
}

func (h *Handler) SetItemChecked(c *gin.Context) {
	var req struct {
		Checked *bool `json:"checked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checked is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	if err := h.BasketStore.SetItemChecked(ctx, b.ID, c.Param("id"), *req.Checked); err != nil {
		if errors.Is(err, basket.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "basket item not found"})
			return
		}
		h.Log.Errorw("failed to update basket item", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update basket item"})
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckAllItems sets the checked state of every item in the basket.
// Items that fail to update are reported individually instead of
// failing the whole request.
func (h *Handler) CheckAllItems(c *gin.Context) {
	var req struct {
		Checked *bool `json:"checked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checked is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	updated := 0
	failed := []string{}
	for _, item := range b.Items {
		if err := h.BasketStore.SetItemChecked(ctx, b.ID, item.ID, *req.Checked); err != nil {
			h.Log.Warnw("failed to update basket item", "id", item.ID, "error", err)
			failed = append(failed, item.ID)
			continue
		}
		updated++
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "failed": failed})
}

func (h *Handler) ClearCheckedItems(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	if err := h.BasketStore.ClearChecked(ctx, b.ID); err != nil {
		h.Log.Errorw("failed to clear checked items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear checked items"})
		return
	}
	h.respondBasket(c, ctx, b.ID)
}

// respondBasket writes the basket's post-mutation state.
func (h *Handler) respondBasket(c *gin.Context, ctx context.Context, basketID string) {
	b, err := h.BasketStore.Snapshot(ctx, basketID)
	if err != nil {
		h.Log.Errorw("failed to load basket", "id", basketID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) ClearBasket(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	if err := h.BasketStore.ClearAll(ctx, b.ID); err != nil {
		h.Log.Errorw("failed to clear basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear basket"})
		return
	}
	c.Status(http.StatusNoContent)
}

// BasketView renders the basket for display. Item order stays stable
// across reloads within a server session: items that survive a change
// keep their place and new items append at the end. ?group=category
// buckets items by grocery aisle, ?group=recipe by contributing recipe,
// and ?q= filters items by name.
func (h *Handler) BasketView(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	b, err := h.BasketStore.Current(ctx)
	if err != nil {
		h.Log.Errorw("failed to load basket", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.projections == nil {
		h.projections = make(map[string]*basket.Projection)
	}
	p, ok := h.projections[b.ID]
	if !ok {
		p = basket.NewProjection()
		h.projections[b.ID] = p
	}
	p.Reconcile(b)

	if q := c.Query("q"); q != "" {
		c.JSON(http.StatusOK, gin.H{"items": p.Filter(q)})
		return
	}

	switch c.Query("group") {
	case "recipe":
		c.JSON(http.StatusOK, gin.H{"groups": p.ByRecipe()})
	case "", "category":
		c.JSON(http.StatusOK, gin.H{"groups": p.ByCategory()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "group must be category or recipe"})
	}
}
