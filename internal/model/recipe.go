package model

import "time"

// Recipe is owned by exactly one user and links to any number of that
// user's tags and ingredients.
//
// Image is a storage key such as "uploads/recipe/<uuid>.jpg", empty when no
// image has been uploaded. The HTTP layer turns it into a URL.
type Recipe struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	TimeMinutes int
	Price       Price
	Link        string
	Image       string
	Tags        []Attribute
	Ingredients []Attribute
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecipeFilter narrows a recipe listing. A recipe matches when it links to
// ANY of TagIDs (if set) and ANY of IngredientIDs (if set).
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipeInput is the writable part of a recipe, as decoded from a request.
//
// For a partial update nil pointers mean "leave unchanged". A nil Tags or
// Ingredients slice leaves the links alone; an empty non-nil slice clears them.
type RecipeInput struct {
	Title       *string
	Description *string
	TimeMinutes *int
	Price       *Price
	Link        *string
	Tags        []string
	Ingredients []string
}
