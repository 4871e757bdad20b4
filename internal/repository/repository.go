// Package repository declares the storage contracts used by the service layer.
//
// Every recipe and attribute method takes the owning user's ID explicitly.
// Implementations must add it to every query: a row owned by someone else
// is indistinguishable from a row that does not exist (apperror.ErrNotFound).
package repository

import (
	"context"

	"github.com/sakif/recipe-api/internal/model"
)

type UserRepository interface {
	// CreateUser inserts the user and fills in ID and timestamps.
	// A duplicate email returns apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// RecipeUpdate says which link sets an Update replaces.
type RecipeUpdate struct {
	ReplaceTags        bool
	ReplaceIngredients bool
}

type RecipeRepository interface {
	// CreateRecipe inserts the recipe. Tags and Ingredients are matched by
	// name against the owner's attributes, created when missing, and linked.
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	GetRecipe(ctx context.Context, userID, id int64) (*model.Recipe, error)
	// ListRecipes returns the owner's recipes, newest ID first, no duplicates.
	ListRecipes(ctx context.Context, userID int64, filter model.RecipeFilter) ([]model.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe *model.Recipe, opts RecipeUpdate) error
	// SetRecipeImage stores a new image key and returns the previous one.
	SetRecipeImage(ctx context.Context, userID, id int64, image string) (string, error)
	DeleteRecipe(ctx context.Context, userID, id int64) error
}

// AttributeListOptions narrows an attribute listing.
type AttributeListOptions struct {
	// AssignedOnly keeps only attributes linked to at least one of the
	// owner's recipes.
	AssignedOnly bool
}

// AttributeRepository serves one AttributeKind (tags OR ingredients).
type AttributeRepository interface {
	Kind() model.AttributeKind
	// ListAttributes orders by name descending, then ID descending.
	ListAttributes(ctx context.Context, userID int64, opts AttributeListOptions) ([]model.Attribute, error)
	GetAttribute(ctx context.Context, userID, id int64) (*model.Attribute, error)
	UpdateAttribute(ctx context.Context, attr *model.Attribute) error
	DeleteAttribute(ctx context.Context, userID, id int64) error
}
