package basket

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

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db         *sqlx.DB
	aggregator *Aggregator
}

// NewPostgresStore connects and prepares the basket tables.
func NewPostgresStore(dataSourceName string, agg *Aggregator) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if agg == nil {
		agg = NewAggregator(nil)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS grocery_baskets (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create grocery_baskets table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS basket_recipes (
		id TEXT PRIMARY KEY,
		basket_id TEXT NOT NULL REFERENCES grocery_baskets(id) ON DELETE CASCADE,
		recipe_id TEXT NOT NULL,
		title TEXT NOT NULL,
		servings INTEGER NOT NULL,
		original_servings INTEGER NOT NULL,
		UNIQUE (basket_id, recipe_id)
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create basket_recipes table: %w", err)
	}

	schema = `
	CREATE TABLE IF NOT EXISTS basket_items (
		id TEXT PRIMARY KEY,
		basket_id TEXT NOT NULL REFERENCES grocery_baskets(id) ON DELETE CASCADE,
		position BIGSERIAL,
		name TEXT NOT NULL,
		amount DOUBLE PRECISION,
		unit TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'Other',
		checked BOOLEAN NOT NULL DEFAULT FALSE,
		recipe_ids JSONB NOT NULL
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create basket_items table: %w", err)
	}

	return &PostgresStore{db: db, aggregator: agg}, nil
}

// Current resolves the most recent basket, creating one lazily.
func (s *PostgresStore) Current(ctx context.Context) (*Basket, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM grocery_baskets ORDER BY created_at DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		id = uuid.NewString()
		now := time.Now().UTC()
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO grocery_baskets (id, created_at, updated_at) VALUES ($1, $2, $2)", id, now); err != nil {
			return nil, fmt.Errorf("failed to create basket: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to resolve current basket: %w", err)
	}
	return s.Snapshot(ctx, id)
}

// Snapshot loads a basket with its recipes and items.
func (s *PostgresStore) Snapshot(ctx context.Context, basketID string) (*Basket, error) {
	b := &Basket{ID: basketID}
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM grocery_baskets WHERE id = $1", basketID).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get basket: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT recipe_id, title, servings, original_servings FROM basket_recipes WHERE basket_id = $1", basketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get basket recipes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e RecipeEntry
		if err := rows.StructScan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan basket recipe: %w", err)
		}
		b.Recipes = append(b.Recipes, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	itemRows, err := s.db.QueryxContext(ctx,
		"SELECT id, name, amount, unit, category, checked, recipe_ids FROM basket_items WHERE basket_id = $1 ORDER BY position", basketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get basket items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it Item
		var recipeIDsJSON []byte
		if err := itemRows.Scan(&it.ID, &it.Name, &it.Amount, &it.Unit, &it.Category, &it.Checked, &recipeIDsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan basket item: %w", err)
		}
		if err := json.Unmarshal(recipeIDsJSON, &it.RecipeIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipe ids: %w", err)
		}
		b.Items = append(b.Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return b, nil
}

// AddRecipe adds a recipe and merges its expanded ingredients, or updates the
// servings of an already-present recipe. The whole mutation runs in one
// transaction.
func (s *PostgresStore) AddRecipe(ctx context.Context, basketID string, snap RecipeSnapshot, servings int) error {
	if err := snap.validate(); err != nil {
		return err
	}
	if servings < 1 {
		servings = snap.Servings
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM basket_recipes WHERE basket_id = $1 AND recipe_id = $2", basketID, snap.ID).
		Scan(&existingID)
	switch {
	case err == nil:
		// Servings-only update; existing items keep their amounts.
		if _, err := tx.ExecContext(ctx,
			"UPDATE basket_recipes SET servings = $2 WHERE id = $1", existingID, servings); err != nil {
			return fmt.Errorf("failed to update basket recipe: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO basket_recipes (id, basket_id, recipe_id, title, servings, original_servings)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), basketID, snap.ID, snap.Title, servings, snap.Servings); err != nil {
			return fmt.Errorf("failed to add basket recipe: %w", err)
		}
		proposed := s.aggregator.ExpandRecipe(snap.Ingredients, servings, snap.Servings, snap.ID)
		if err := mergeProposedTx(ctx, tx, basketID, proposed); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to check basket recipe: %w", err)
	}

	if err := touchBasket(ctx, tx, basketID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func mergeProposedTx(ctx context.Context, tx *sqlx.Tx, basketID string, proposed []ProposedItem) error {
	for _, p := range proposed {
		var itemID string
		var recipeIDsJSON []byte
		err := tx.QueryRowContext(ctx,
			"SELECT id, recipe_ids FROM basket_items WHERE basket_id = $1 AND name = $2 AND unit = $3",
			basketID, p.Name, p.Unit).Scan(&itemID, &recipeIDsJSON)
		switch {
		case err == nil:
			var ids []string
			if err := json.Unmarshal(recipeIDsJSON, &ids); err != nil {
				return fmt.Errorf("failed to unmarshal recipe ids: %w", err)
			}
			if containsString(ids, p.RecipeID) {
				continue
			}
			ids = append(ids, p.RecipeID)
			updated, err := json.Marshal(ids)
			if err != nil {
				return fmt.Errorf("failed to marshal recipe ids: %w", err)
			}
			// Contributor set grows; the stored amount is not re-summed.
			if _, err := tx.ExecContext(ctx,
				"UPDATE basket_items SET recipe_ids = $2 WHERE id = $1", itemID, updated); err != nil {
				return fmt.Errorf("failed to update basket item: %w", err)
			}
		case errors.Is(err, sql.ErrNoRows):
			idsJSON, err := json.Marshal([]string{p.RecipeID})
			if err != nil {
				return fmt.Errorf("failed to marshal recipe ids: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO basket_items (id, basket_id, name, amount, unit, category, checked, recipe_ids)
				VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
				uuid.NewString(), basketID, p.Name, p.Amount, p.Unit, p.Category, idsJSON); err != nil {
				return fmt.Errorf("failed to insert basket item: %w", err)
			}
		default:
			return fmt.Errorf("failed to look up basket item: %w", err)
		}
	}
	return nil
}

// RemoveRecipe removes a recipe entry and prunes its item contributions.
// Idempotent: removing an absent recipe changes nothing.
func (s *PostgresStore) RemoveRecipe(ctx context.Context, basketID, recipeID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM basket_recipes WHERE basket_id = $1 AND recipe_id = $2", basketID, recipeID); err != nil {
		return fmt.Errorf("failed to remove basket recipe: %w", err)
	}

	needle, err := json.Marshal([]string{recipeID})
	if err != nil {
		return fmt.Errorf("failed to marshal recipe id: %w", err)
	}
	rows, err := tx.QueryxContext(ctx,
		"SELECT id, recipe_ids FROM basket_items WHERE basket_id = $1 AND recipe_ids @> $2", basketID, needle)
	if err != nil {
		return fmt.Errorf("failed to find contributed items: %w", err)
	}
	type contributed struct {
		id  string
		ids []string
	}
	var affected []contributed
	for rows.Next() {
		var c contributed
		var idsJSON []byte
		if err := rows.Scan(&c.id, &idsJSON); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan basket item: %w", err)
		}
		if err := json.Unmarshal(idsJSON, &c.ids); err != nil {
			rows.Close()
			return fmt.Errorf("failed to unmarshal recipe ids: %w", err)
		}
		affected = append(affected, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, c := range affected {
		if len(c.ids) == 1 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM basket_items WHERE id = $1", c.id); err != nil {
				return fmt.Errorf("failed to delete basket item: %w", err)
			}
			continue
		}
		kept := make([]string, 0, len(c.ids)-1)
		for _, id := range c.ids {
			if id != recipeID {
				kept = append(kept, id)
			}
		}
		keptJSON, err := json.Marshal(kept)
		if err != nil {
			return fmt.Errorf("failed to marshal recipe ids: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE basket_items SET recipe_ids = $2 WHERE id = $1", c.id, keptJSON); err != nil {
			return fmt.Errorf("failed to update basket item: %w", err)
		}
	}

	if err := touchBasket(ctx, tx, basketID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SetItemChecked sets an item's checked flag.
func (s *PostgresStore) SetItemChecked(ctx context.Context, basketID, itemID string, checked bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE basket_items SET checked = $3 WHERE basket_id = $1 AND id = $2", basketID, itemID, checked)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearChecked deletes all checked items; recipe entries stay.
func (s *PostgresStore) ClearChecked(ctx context.Context, basketID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM basket_items WHERE basket_id = $1 AND checked = TRUE", basketID); err != nil {
		return fmt.Errorf("failed to clear checked items: %w", err)
	}
	return nil
}

// ClearAll deletes every item and recipe entry of a basket.
func (s *PostgresStore) ClearAll(ctx context.Context, basketID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM basket_items WHERE basket_id = $1", basketID); err != nil {
		return fmt.Errorf("failed to clear basket items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM basket_recipes WHERE basket_id = $1", basketID); err != nil {
		return fmt.Errorf("failed to clear basket recipes: %w", err)
	}
	if err := touchBasket(ctx, tx, basketID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func touchBasket(ctx context.Context, tx *sqlx.Tx, basketID string) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE grocery_baskets SET updated_at = $2 WHERE id = $1", basketID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to touch basket: %w", err)
	}
	return nil
}
