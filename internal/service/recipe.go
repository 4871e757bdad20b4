// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values, never *http.Request, and return
// apperror values that the handler maps to status codes. Every recipe and
// attribute method takes the caller's user ID explicitly; there is no
// ambient "current user".
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/storage"
)

const (
	MaxTitleLength         = 255
	MaxLinkLength          = 255
	MaxAttributeNameLength = 255
	// DefaultMaxUploadBytes caps recipe image uploads when no limit is configured.
	DefaultMaxUploadBytes = 10 << 20
)

const (
	msgRequired      = "This field is required."
	msgTooLong255    = "Ensure this field has no more than 255 characters."
	msgNoFile        = "No file was submitted."
	msgEmptyFile     = "The submitted file is empty."
	msgFileTooLarge  = "Ensure this file is no larger than %d bytes."
	attributeNameKey = "name"
)

// RecipeService handles recipe CRUD and image uploads for one caller at a time.
type RecipeService struct {
	repo           repository.RecipeRepository
	images         storage.Storage
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewRecipeService wires the service. A non-positive maxUploadBytes falls
// back to DefaultMaxUploadBytes.
func NewRecipeService(repo repository.RecipeRepository, images storage.Storage, maxUploadBytes int64, logger *slog.Logger) *RecipeService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &RecipeService{
		repo:           repo,
		images:         images,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// MaxUploadBytes is the largest image UploadImage accepts.
func (s *RecipeService) MaxUploadBytes() int64 { return s.maxUploadBytes }

// ImageURL turns a stored image key into a public URL. Empty stays empty.
func (s *RecipeService) ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return s.images.URL(key)
}

// List returns the caller's recipes, newest first, narrowed by filter.
func (s *RecipeService) List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]model.Recipe, error) {
	recipes, err := s.repo.ListRecipes(ctx, userID, filter)
	if err != nil {
		s.logger.Error("failed to list recipes",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	return recipes, nil
}

// Create validates in and saves a new recipe owned by userID. Any tag or
// ingredient name the caller does not have yet is created.
func (s *RecipeService) Create(ctx context.Context, userID int64, in model.RecipeInput) (*model.Recipe, error) {
	if errs := validateRecipeInput(in, false); !errs.Empty() {
		return nil, apperror.Validation(errs)
	}

	recipe := &model.Recipe{UserID: userID}
	applyRecipeInput(recipe, in)
	if recipe.Tags == nil {
		recipe.Tags = []model.Attribute{}
	}
	if recipe.Ingredients == nil {
		recipe.Ingredients = []model.Attribute{}
	}

	if err := s.repo.CreateRecipe(ctx, recipe); err != nil {
		s.logger.Error("failed to create recipe",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.Int64("id", recipe.ID),
		slog.Int64("userID", userID),
	)
	return recipe, nil
}

// Get returns one of the caller's recipes. Someone else's recipe is
// apperror.ErrNotFound, the same as a missing one.
func (s *RecipeService) Get(ctx context.Context, userID, id int64) (*model.Recipe, error) {
	return s.repo.GetRecipe(ctx, userID, id)
}

// Update modifies one of the caller's recipes.
//
// A full update (partial=false) requires title, time_minutes and price.
// A partial update validates only what is present. In both cases a present
// tags/ingredients list replaces the existing set and an absent one leaves
// it alone.
func (s *RecipeService) Update(ctx context.Context, userID, id int64, in model.RecipeInput, partial bool) (*model.Recipe, error) {
	if errs := validateRecipeInput(in, partial); !errs.Empty() {
		return nil, apperror.Validation(errs)
	}

	recipe, err := s.repo.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	applyRecipeInput(recipe, in)

	opts := repository.RecipeUpdate{
		ReplaceTags:        in.Tags != nil,
		ReplaceIngredients: in.Ingredients != nil,
	}
	if err := s.repo.UpdateRecipe(ctx, recipe, opts); err != nil {
		return nil, fmt.Errorf("updating recipe: %w", err)
	}

	s.logger.Info("recipe updated",
		slog.Int64("id", recipe.ID),
		slog.Bool("partial", partial),
	)
	return recipe, nil
}

// Delete removes one of the caller's recipes and, best-effort, its image.
func (s *RecipeService) Delete(ctx context.Context, userID, id int64) error {
	recipe, err := s.repo.GetRecipe(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRecipe(ctx, userID, id); err != nil {
		return err
	}

	s.removeImage(ctx, recipe.Image)
	s.logger.Info("recipe deleted", slog.Int64("id", id))
	return nil
}

// UploadImage validates data as a supported image, stores it under a fresh
// key and points the recipe at it. The previous image, if any, is removed.
//
// The recipe is resolved first, so a missing or foreign recipe is a 404
// whatever the payload. A nil data slice means the request carried no file
// at all. The stored extension always matches the sniffed content type.
func (s *RecipeService) UploadImage(ctx context.Context, userID, id int64, filename string, data []byte) (*model.Recipe, error) {
	recipe, err := s.repo.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	switch {
	case data == nil:
		return nil, apperror.ValidationFailed("image", msgNoFile)
	case len(data) == 0:
		return nil, apperror.ValidationFailed("image", msgEmptyFile)
	case int64(len(data)) > s.maxUploadBytes:
		return nil, apperror.ValidationFailed("image", fmt.Sprintf(msgFileTooLarge, s.maxUploadBytes))
	}

	if err := storage.CheckImageExtension(filename); err != nil {
		return nil, apperror.ValidationFailed("image", err.Error())
	}
	contentType, err := storage.DetectImage(data)
	if err != nil {
		return nil, apperror.ValidationFailed("image", storage.ErrNotImage.Error())
	}

	key := storage.RecipeImageKey(contentType)

	if err := s.images.Save(ctx, key, data, contentType); err != nil {
		s.logger.Error("failed to store recipe image",
			slog.Int64("id", id),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing recipe image: %w", err)
	}

	previous, err := s.repo.SetRecipeImage(ctx, userID, id, key)
	if err != nil {
		s.removeImage(ctx, key)
		return nil, err
	}
	if previous != key {
		s.removeImage(ctx, previous)
	}

	recipe.Image = key
	s.logger.Info("recipe image uploaded",
		slog.Int64("id", id),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return recipe, nil
}

// removeImage deletes key from storage, logging instead of failing: the
// database is already consistent and an orphaned blob is harmless.
func (s *RecipeService) removeImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete recipe image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func validateRecipeInput(in model.RecipeInput, partial bool) apperror.FieldErrors {
	errs := apperror.FieldErrors{}

	if in.Title == nil {
		if !partial {
			errs.Add("title", msgRequired)
		}
	} else if t := strings.TrimSpace(*in.Title); t == "" {
		errs.Add("title", msgFieldBlank)
	} else if len([]rune(t)) > MaxTitleLength {
		errs.Add("title", msgTooLong255)
	}

	if in.TimeMinutes == nil && !partial {
		errs.Add("time_minutes", msgRequired)
	}
	if in.Price == nil && !partial {
		errs.Add("price", msgRequired)
	}

	if in.Link != nil && len([]rune(*in.Link)) > MaxLinkLength {
		errs.Add("link", msgTooLong255)
	}

	validateAttributeNames(errs, "tags", in.Tags)
	validateAttributeNames(errs, "ingredients", in.Ingredients)
	return errs
}

func validateAttributeNames(errs apperror.FieldErrors, field string, names []string) {
	for i, name := range names {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			errs.Add(field, "["+strconv.Itoa(i)+"] name: "+msgFieldBlank)
		case len([]rune(name)) > MaxAttributeNameLength:
			errs.Add(field, "["+strconv.Itoa(i)+"] name: "+msgTooLong255)
		}
	}
}

// applyRecipeInput copies every present field of in onto r.
func applyRecipeInput(r *model.Recipe, in model.RecipeInput) {
	if in.Title != nil {
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if in.TimeMinutes != nil {
		r.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		r.Price = *in.Price
	}
	if in.Link != nil {
		r.Link = strings.TrimSpace(*in.Link)
	}
	if in.Tags != nil {
		r.Tags = namesToAttributes(model.KindTag, in.Tags)
	}
	if in.Ingredients != nil {
		r.Ingredients = namesToAttributes(model.KindIngredient, in.Ingredients)
	}
}

func namesToAttributes(kind model.AttributeKind, names []string) []model.Attribute {
	attrs := make([]model.Attribute, 0, len(names))
	for _, n := range names {
		attrs = append(attrs, model.Attribute{Name: strings.TrimSpace(n), Kind: kind})
	}
	return attrs
}
