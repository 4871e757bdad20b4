package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

const recipeColumns = `r.id, r.user_id, r.title, r.description, r.time_minutes, r.price_cents, r.link, r.image, r.created_at, r.updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(s rowScanner, r *model.Recipe) error {
	var cents int64
	err := s.Scan(
		&r.ID,
		&r.UserID,
		&r.Title,
		&r.Description,
		&r.TimeMinutes,
		&cents,
		&r.Link,
		&r.Image,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	r.Price = model.Price(cents)
	return err
}

// CreateRecipe inserts the recipe and its tag/ingredient links in one
// transaction. Attribute names are resolved with get-or-create, so a
// failed insert leaves no orphaned tags behind.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (user_id, title, description, time_minutes, price_cents, link, image, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			recipe.UserID,
			recipe.Title,
			recipe.Description,
			recipe.TimeMinutes,
			recipe.Price.Cents(),
			recipe.Link,
			recipe.Image,
			recipe.CreatedAt,
			recipe.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting recipe: %w", err)
		}
		if recipe.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sqlite: reading new recipe id: %w", err)
		}

		if recipe.Tags, err = linkAttributes(ctx, tx, tablesFor(model.KindTag), recipe.UserID, recipe.ID, recipe.Tags); err != nil {
			return err
		}
		if recipe.Ingredients, err = linkAttributes(ctx, tx, tablesFor(model.KindIngredient), recipe.UserID, recipe.ID, recipe.Ingredients); err != nil {
			return err
		}
		return nil
	})
}

// GetRecipe returns the recipe with its tags and ingredients if it belongs
// to userID, apperror.ErrNotFound otherwise.
func (db *DB) GetRecipe(ctx context.Context, userID, id int64) (*model.Recipe, error) {
	var recipe model.Recipe
	err := scanRecipe(db.conn.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ? AND r.user_id = ?`,
		id, userID,
	), &recipe)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recipe", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}

	recipes := []model.Recipe{recipe}
	if err := loadAttributes(ctx, db.conn, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// ListRecipes returns the owner's recipes, highest ID first.
//
// Filters are EXISTS subqueries rather than JOINs: a recipe carrying two of
// the requested tags must still appear exactly once.
func (db *DB) ListRecipes(ctx context.Context, userID int64, filter model.RecipeFilter) ([]model.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = ?`
	args := []any{userID}

	if len(filter.TagIDs) > 0 {
		query += ` AND EXISTS (SELECT 1 FROM recipe_tags rt
			WHERE rt.recipe_id = r.id AND rt.tag_id IN (` + placeholders(len(filter.TagIDs)) + `))`
		args = append(args, int64Args(filter.TagIDs)...)
	}
	if len(filter.IngredientIDs) > 0 {
		query += ` AND EXISTS (SELECT 1 FROM recipe_ingredients ri
			WHERE ri.recipe_id = r.id AND ri.ingredient_id IN (` + placeholders(len(filter.IngredientIDs)) + `))`
		args = append(args, int64Args(filter.IngredientIDs)...)
	}
	query += ` ORDER BY r.id DESC`

	recipes, err := db.queryRecipes(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := loadAttributes(ctx, db.conn, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// queryRecipes runs query and scans every row. The rows are closed before
// returning so the caller can issue follow-up queries on a single-connection
// pool.
func (db *DB) queryRecipes(ctx context.Context, query string, args ...any) ([]model.Recipe, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]model.Recipe, 0)
	for rows.Next() {
		var r model.Recipe
		if err := scanRecipe(rows, &r); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recipe rows: %w", err)
	}
	return recipes, nil
}

// UpdateRecipe writes the scalar fields and, when asked, replaces the tag
// and/or ingredient link sets. On return recipe carries the stored links.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdate) error {
	recipe.UpdatedAt = time.Now()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recipes
			 SET title = ?, description = ?, time_minutes = ?, price_cents = ?, link = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			recipe.Title,
			recipe.Description,
			recipe.TimeMinutes,
			recipe.Price.Cents(),
			recipe.Link,
			recipe.UpdatedAt,
			recipe.ID,
			recipe.UserID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating recipe %d: %w", recipe.ID, err)
		}
		if err := expectOneRow(res, "recipe", recipe.ID); err != nil {
			return err
		}

		if opts.ReplaceTags {
			if err := replaceLinks(ctx, tx, tablesFor(model.KindTag), recipe.UserID, recipe.ID, recipe.Tags); err != nil {
				return err
			}
		}
		if opts.ReplaceIngredients {
			if err := replaceLinks(ctx, tx, tablesFor(model.KindIngredient), recipe.UserID, recipe.ID, recipe.Ingredients); err != nil {
				return err
			}
		}

		recipes := []model.Recipe{*recipe}
		if err := loadAttributes(ctx, tx, recipes); err != nil {
			return err
		}
		recipe.Tags = recipes[0].Tags
		recipe.Ingredients = recipes[0].Ingredients
		return nil
	})
}

// SetRecipeImage stores a new image key and returns the one it replaced.
func (db *DB) SetRecipeImage(ctx context.Context, userID, id int64, image string) (string, error) {
	var previous string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image FROM recipes WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("recipe", strconv.FormatInt(id, 10))
			}
			return fmt.Errorf("sqlite: reading recipe %d image: %w", id, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE recipes SET image = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			image, time.Now(), id, userID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: setting recipe %d image: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// DeleteRecipe removes the recipe and, via ON DELETE CASCADE, its links.
// Tags and ingredients survive.
func (db *DB) DeleteRecipe(ctx context.Context, userID, id int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM recipes WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
	}
	return expectOneRow(res, "recipe", id)
}

// linkAttributes resolves each attribute name (get-or-create) and links it
// to the recipe. Duplicate names collapse into one link. The returned slice
// holds the resolved attributes in request order.
func linkAttributes(ctx context.Context, q queryer, t attributeTables, userID, recipeID int64, attrs []model.Attribute) ([]model.Attribute, error) {
	linked := make([]model.Attribute, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))

	for _, a := range attrs {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true

		id, err := getOrCreateAttribute(ctx, q, t, userID, a.Name)
		if err != nil {
			return nil, err
		}

		_, err = q.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+t.link+` (recipe_id, `+t.linkColumn+`) VALUES (?, ?)`,
			recipeID, id,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: linking %s %d to recipe %d: %w", t.table, id, recipeID, err)
		}
		linked = append(linked, model.Attribute{ID: id, Name: a.Name, UserID: userID, Kind: a.Kind})
	}
	return linked, nil
}

func replaceLinks(ctx context.Context, q queryer, t attributeTables, userID, recipeID int64, attrs []model.Attribute) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM `+t.link+` WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("sqlite: clearing %s of recipe %d: %w", t.link, recipeID, err)
	}
	_, err := linkAttributes(ctx, q, t, userID, recipeID, attrs)
	return err
}

// loadAttributes fills Tags and Ingredients for every recipe with one query
// per kind. Recipes without links get an empty, non-nil slice.
func loadAttributes(ctx context.Context, q queryer, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	ids := make([]int64, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
	}

	tags, err := loadLinked(ctx, q, model.KindTag, ids)
	if err != nil {
		return err
	}
	ingredients, err := loadLinked(ctx, q, model.KindIngredient, ids)
	if err != nil {
		return err
	}

	for i := range recipes {
		recipes[i].Tags = nonNil(tags[recipes[i].ID])
		recipes[i].Ingredients = nonNil(ingredients[recipes[i].ID])
	}
	return nil
}

func loadLinked(ctx context.Context, q queryer, kind model.AttributeKind, recipeIDs []int64) (map[int64][]model.Attribute, error) {
	t := tablesFor(kind)
	rows, err := q.QueryContext(ctx,
		`SELECT l.recipe_id, a.id, a.name, a.user_id
		 FROM `+t.link+` l JOIN `+t.table+` a ON a.id = l.`+t.linkColumn+`
		 WHERE l.recipe_id IN (`+placeholders(len(recipeIDs))+`)
		 ORDER BY a.id`,
		int64Args(recipeIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading %ss: %w", kind, err)
	}
	defer rows.Close()

	byRecipe := make(map[int64][]model.Attribute)
	for rows.Next() {
		var recipeID int64
		attr := model.Attribute{Kind: kind}
		if err := rows.Scan(&recipeID, &attr.ID, &attr.Name, &attr.UserID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s link: %w", kind, err)
		}
		byRecipe[recipeID] = append(byRecipe[recipeID], attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s links: %w", kind, err)
	}
	return byRecipe, nil
}

func nonNil(attrs []model.Attribute) []model.Attribute {
	if attrs == nil {
		return []model.Attribute{}
	}
	return attrs
}
