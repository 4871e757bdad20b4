package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.AttributeRepository = (*AttributeDB)(nil)

// attributeTables names the storage for one AttributeKind. Table names come
// from this fixed set only, never from user input, so building SQL with them
// is safe.
type attributeTables struct {
	table      string // "tags"
	link       string // "recipe_tags"
	linkColumn string // "tag_id"
}

func tablesFor(kind model.AttributeKind) attributeTables {
	switch kind {
	case model.KindIngredient:
		return attributeTables{table: "ingredients", link: "recipe_ingredients", linkColumn: "ingredient_id"}
	default:
		return attributeTables{table: "tags", link: "recipe_tags", linkColumn: "tag_id"}
	}
}

// AttributeDB is the repository for one attribute kind. Tags and ingredients
// share identical storage shapes, so one implementation serves both.
type AttributeDB struct {
	db   *DB
	kind model.AttributeKind
	t    attributeTables
}

// Attributes returns the repository for the given kind.
func (db *DB) Attributes(kind model.AttributeKind) *AttributeDB {
	return &AttributeDB{db: db, kind: kind, t: tablesFor(kind)}
}

// Tags is shorthand for Attributes(model.KindTag).
func (db *DB) Tags() *AttributeDB { return db.Attributes(model.KindTag) }

// Ingredients is shorthand for Attributes(model.KindIngredient).
func (db *DB) Ingredients() *AttributeDB { return db.Attributes(model.KindIngredient) }

// Kind reports which attribute table this repository serves.
func (a *AttributeDB) Kind() model.AttributeKind { return a.kind }

// ListAttributes returns the owner's attributes ordered by name descending,
// then ID descending.
//
// AssignedOnly uses EXISTS instead of a JOIN so an attribute linked to many
// recipes still appears once.
func (a *AttributeDB) ListAttributes(ctx context.Context, userID int64, opts repository.AttributeListOptions) ([]model.Attribute, error) {
	query := `SELECT a.id, a.name, a.user_id FROM ` + a.t.table + ` a WHERE a.user_id = ?`
	args := []any{userID}

	if opts.AssignedOnly {
		query += ` AND EXISTS (
			SELECT 1 FROM ` + a.t.link + ` l
			JOIN recipes r ON r.id = l.recipe_id
			WHERE l.` + a.t.linkColumn + ` = a.id AND r.user_id = ?)`
		args = append(args, userID)
	}
	query += ` ORDER BY a.name DESC, a.id DESC`

	rows, err := a.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %ss: %w", a.kind, err)
	}
	defer rows.Close()

	attrs := make([]model.Attribute, 0)
	for rows.Next() {
		attr := model.Attribute{Kind: a.kind}
		if err := rows.Scan(&attr.ID, &attr.Name, &attr.UserID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", a.kind, err)
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s rows: %w", a.kind, err)
	}
	return attrs, nil
}

// GetAttribute returns the attribute if it exists and belongs to userID.
func (a *AttributeDB) GetAttribute(ctx context.Context, userID, id int64) (*model.Attribute, error) {
	attr := model.Attribute{Kind: a.kind}
	err := a.db.conn.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM `+a.t.table+` WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&attr.ID, &attr.Name, &attr.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(a.kind.String(), strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting %s %d: %w", a.kind, id, err)
	}
	return &attr, nil
}

// UpdateAttribute renames the attribute. Ownership is enforced by the
// WHERE clause: another user's row simply matches nothing.
func (a *AttributeDB) UpdateAttribute(ctx context.Context, attr *model.Attribute) error {
	res, err := a.db.conn.ExecContext(ctx,
		`UPDATE `+a.t.table+` SET name = ? WHERE id = ? AND user_id = ?`,
		attr.Name, attr.ID, attr.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s %d: %w", a.kind, attr.ID, err)
	}
	return expectOneRow(res, a.kind.String(), attr.ID)
}

// DeleteAttribute removes the attribute. ON DELETE CASCADE drops its recipe
// links; the recipes themselves are untouched.
func (a *AttributeDB) DeleteAttribute(ctx context.Context, userID, id int64) error {
	res, err := a.db.conn.ExecContext(ctx,
		`DELETE FROM `+a.t.table+` WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %d: %w", a.kind, id, err)
	}
	return expectOneRow(res, a.kind.String(), id)
}

// getOrCreateAttribute resolves name to one of userID's attributes,
// inserting it when missing. Names are not unique, so the lowest ID wins.
func getOrCreateAttribute(ctx context.Context, q queryer, t attributeTables, userID int64, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM `+t.table+` WHERE user_id = ? AND name = ? ORDER BY id LIMIT 1`,
		userID, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: looking up %s %q: %w", t.table, name, err)
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO `+t.table+` (user_id, name) VALUES (?, ?)`,
		userID, name,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting %s %q: %w", t.table, name, err)
	}
	return res.LastInsertId()
}

// expectOneRow turns a zero-row UPDATE/DELETE into apperror.ErrNotFound.
func expectOneRow(res sql.Result, resource string, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	return nil
}
