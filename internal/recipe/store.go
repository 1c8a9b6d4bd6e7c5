package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a referenced recipe or tag does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for recipe and tag catalog operations.
type Store interface {
	SaveRecipe(ctx context.Context, r *Recipe) (*Recipe, error)
	GetRecipe(ctx context.Context, id string) (*Recipe, error)
	ListRecipes(ctx context.Context) ([]*Recipe, error)
	UpdateRecipe(ctx context.Context, r *Recipe) error
	DeleteRecipe(ctx context.Context, id string) error
	SaveTranslation(ctx context.Context, id string, tr *Translation) error

	ListTags(ctx context.Context) ([]*Tag, error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS recipes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		source_url TEXT,
		tags JSONB,
		ingredients JSONB,
		steps JSONB,
		prep_time INTEGER,
		cook_time INTEGER,
		servings INTEGER NOT NULL,
		translated_title TEXT,
		translated_description TEXT,
		translated_ingredients JSONB,
		translated_steps JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create recipes table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		recipe_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create tags table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveRecipe inserts a new recipe and bumps the reference count of its tags.
func (s *PostgresStore) SaveRecipe(ctx context.Context, r *Recipe) (*Recipe, error) {
	saved := *r
	saved.ID = uuid.NewString()
	now := time.Now().UTC()
	saved.CreatedAt = now
	saved.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRecipe(ctx, tx, &saved); err != nil {
		return nil, err
	}
	if err := bumpTags(ctx, tx, saved.Tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &saved, nil
}

func insertRecipe(ctx context.Context, tx *sqlx.Tx, r *Recipe) error {
	tagsJSON, ingredientsJSON, stepsJSON, trIngredientsJSON, trStepsJSON, err := marshalRecipeFields(r)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recipes (id, title, description, image_url, source_url, tags, ingredients, steps,
			prep_time, cook_time, servings, translated_title, translated_description,
			translated_ingredients, translated_steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		r.ID, r.Title, r.Description, r.ImageURL, r.SourceURL, tagsJSON, ingredientsJSON, stepsJSON,
		r.PrepTime, r.CookTime, r.Servings, r.TranslatedTitle, r.TranslatedDescription,
		trIngredientsJSON, trStepsJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

func marshalRecipeFields(r *Recipe) (tags, ingredients, steps, trIngredients, trSteps []byte, err error) {
	if tags, err = json.Marshal(r.Tags); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	if ingredients, err = json.Marshal(r.Ingredients); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	if steps, err = json.Marshal(r.Steps); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal steps: %w", err)
	}
	if trIngredients, err = json.Marshal(r.TranslatedIngredients); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal translated ingredients: %w", err)
	}
	if trSteps, err = json.Marshal(r.TranslatedSteps); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal translated steps: %w", err)
	}
	return tags, ingredients, steps, trIngredients, trSteps, nil
}

const recipeColumns = `id, title, description, image_url, source_url, tags, ingredients, steps,
	prep_time, cook_time, servings, translated_title, translated_description,
	translated_ingredients, translated_steps, created_at, updated_at`

func scanRecipe(scan func(dest ...interface{}) error) (*Recipe, error) {
	var r Recipe
	var tagsJSON, ingredientsJSON, stepsJSON, trIngredientsJSON, trStepsJSON []byte
	var trTitle, trDescription sql.NullString

	err := scan(
		&r.ID, &r.Title, &r.Description, &r.ImageURL, &r.SourceURL,
		&tagsJSON, &ingredientsJSON, &stepsJSON,
		&r.PrepTime, &r.CookTime, &r.Servings,
		&trTitle, &trDescription, &trIngredientsJSON, &trStepsJSON,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.TranslatedTitle = trTitle.String
	r.TranslatedDescription = trDescription.String

	if err := json.Unmarshal(tagsJSON, &r.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(ingredientsJSON, &r.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &r.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	if len(trIngredientsJSON) > 0 {
		if err := json.Unmarshal(trIngredientsJSON, &r.TranslatedIngredients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal translated ingredients: %w", err)
		}
	}
	if len(trStepsJSON) > 0 {
		if err := json.Unmarshal(trStepsJSON, &r.TranslatedSteps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal translated steps: %w", err)
		}
	}
	return &r, nil
}

// GetRecipe retrieves a recipe by id. Returns (nil, nil) when no recipe exists.
func (s *PostgresStore) GetRecipe(ctx context.Context, id string) (*Recipe, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = $1", id)
	r, err := scanRecipe(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return r, nil
}

// ListRecipes retrieves all recipes, newest first.
func (s *PostgresStore) ListRecipes(ctx context.Context) ([]*Recipe, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT "+recipeColumns+" FROM recipes ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*Recipe
	for rows.Next() {
		r, err := scanRecipe(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return recipes, nil
}

// UpdateRecipe replaces a recipe's fields and re-syncs tag reference counts.
func (s *PostgresStore) UpdateRecipe(ctx context.Context, r *Recipe) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldTagsJSON []byte
	err = tx.QueryRowContext(ctx, "SELECT tags FROM recipes WHERE id = $1", r.ID).Scan(&oldTagsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load recipe tags: %w", err)
	}
	var oldTags []string
	if err := json.Unmarshal(oldTagsJSON, &oldTags); err != nil {
		return fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	tagsJSON, ingredientsJSON, stepsJSON, trIngredientsJSON, trStepsJSON, err := marshalRecipeFields(r)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE recipes SET title = $2, description = $3, image_url = $4, source_url = $5,
			tags = $6, ingredients = $7, steps = $8, prep_time = $9, cook_time = $10,
			servings = $11, translated_ingredients = $12, translated_steps = $13, updated_at = $14
		WHERE id = $1`,
		r.ID, r.Title, r.Description, r.ImageURL, r.SourceURL,
		tagsJSON, ingredientsJSON, stepsJSON, r.PrepTime, r.CookTime,
		r.Servings, trIngredientsJSON, trStepsJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}

	if err := bumpTags(ctx, tx, difference(r.Tags, oldTags)); err != nil {
		return err
	}
	if err := releaseTags(ctx, tx, difference(oldTags, r.Tags)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// DeleteRecipe removes a recipe and decrements its tags' reference counts.
func (s *PostgresStore) DeleteRecipe(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tagsJSON []byte
	err = tx.QueryRowContext(ctx, "SELECT tags FROM recipes WHERE id = $1", id).Scan(&tagsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load recipe tags: %w", err)
	}
	var tags []string
	if err := json.Unmarshal(tagsJSON, &tags); err != nil {
		return fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if err := releaseTags(ctx, tx, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SaveTranslation stores the translated fields of a recipe.
func (s *PostgresStore) SaveTranslation(ctx context.Context, id string, tr *Translation) error {
	trIngredientsJSON, err := json.Marshal(tr.TranslatedIngredients)
	if err != nil {
		return fmt.Errorf("failed to marshal translated ingredients: %w", err)
	}
	trStepsJSON, err := json.Marshal(tr.TranslatedSteps)
	if err != nil {
		return fmt.Errorf("failed to marshal translated steps: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE recipes SET translated_title = $2, translated_description = $3,
			translated_ingredients = $4, translated_steps = $5, updated_at = $6
		WHERE id = $1`,
		id, tr.TranslatedTitle, tr.TranslatedDescription, trIngredientsJSON, trStepsJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTags retrieves all tags ordered by reference count.
func (s *PostgresStore) ListTags(ctx context.Context) ([]*Tag, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, name, recipe_count, created_at FROM tags ORDER BY recipe_count DESC, name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.StructScan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tags, nil
}

// CreateTag inserts a tag with a zero reference count.
func (s *PostgresStore) CreateTag(ctx context.Context, name string) (*Tag, error) {
	t := Tag{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (id, name, recipe_count, created_at) VALUES ($1, $2, 0, $3) ON CONFLICT (name) DO NOTHING",
		t.ID, t.Name, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &t, nil
}

// DeleteTag removes a tag, first stripping it from every referencing recipe.
// The cascade is authoritative here; clients only reflect it optimistically.
func (s *PostgresStore) DeleteTag(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx, "SELECT name FROM tags WHERE id = $1", id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load tag: %w", err)
	}

	nameJSON, err := json.Marshal([]string{name})
	if err != nil {
		return fmt.Errorf("failed to marshal tag name: %w", err)
	}

	rows, err := tx.QueryxContext(ctx, "SELECT id, tags FROM recipes WHERE tags @> $1", nameJSON)
	if err != nil {
		return fmt.Errorf("failed to find recipes containing tag: %w", err)
	}
	type tagged struct {
		id   string
		tags []string
	}
	var affected []tagged
	for rows.Next() {
		var rid string
		var tagsJSON []byte
		if err := rows.Scan(&rid, &tagsJSON); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan recipe row: %w", err)
		}
		var tags []string
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			rows.Close()
			return fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		affected = append(affected, tagged{id: rid, tags: tags})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, rec := range affected {
		kept := rec.tags[:0:0]
		for _, t := range rec.tags {
			if t != name {
				kept = append(kept, t)
			}
		}
		keptJSON, err := json.Marshal(kept)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE recipes SET tags = $2, updated_at = $3 WHERE id = $1",
			rec.id, keptJSON, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to strip tag from recipe %s: %w", rec.id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func bumpTags(ctx context.Context, tx *sqlx.Tx, names []string) error {
	now := time.Now().UTC()
	for _, name := range names {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, name, recipe_count, created_at) VALUES ($1, $2, 1, $3)
			ON CONFLICT (name) DO UPDATE SET recipe_count = tags.recipe_count + 1`,
			uuid.NewString(), name, now,
		)
		if err != nil {
			return fmt.Errorf("failed to bump tag %q: %w", name, err)
		}
	}
	return nil
}

func releaseTags(ctx context.Context, tx *sqlx.Tx, names []string) error {
	for _, name := range names {
		_, err := tx.ExecContext(ctx,
			"UPDATE tags SET recipe_count = GREATEST(recipe_count - 1, 0) WHERE name = $1", name)
		if err != nil {
			return fmt.Errorf("failed to release tag %q: %w", name, err)
		}
	}
	return nil
}

// difference returns the elements of a not present in b.
func difference(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		seen[s] = true
	}
	var out []string
	for _, s := range a {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}
