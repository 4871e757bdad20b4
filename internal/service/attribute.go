package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// AttributeService serves tags or ingredients, depending on the repository
// it is given. Attributes have no create operation of their own: they come
// into existence through recipe writes.
type AttributeService struct {
	repo   repository.AttributeRepository
	logger *slog.Logger
}

func NewAttributeService(repo repository.AttributeRepository, logger *slog.Logger) *AttributeService {
	return &AttributeService{repo: repo, logger: logger}
}

// Kind reports which attribute kind this service manages.
func (s *AttributeService) Kind() model.AttributeKind { return s.repo.Kind() }

// List returns the caller's attributes, name descending. With assignedOnly
// only those linked to at least one of the caller's recipes are returned.
func (s *AttributeService) List(ctx context.Context, userID int64, assignedOnly bool) ([]model.Attribute, error) {
	attrs, err := s.repo.ListAttributes(ctx, userID, repository.AttributeListOptions{AssignedOnly: assignedOnly})
	if err != nil {
		s.logger.Error("failed to list attributes",
			slog.String("kind", s.Kind().String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing %ss: %w", s.Kind(), err)
	}
	return attrs, nil
}

// Update renames one of the caller's attributes. name is required unless
// partial is set; a partial update without a name changes nothing.
func (s *AttributeService) Update(ctx context.Context, userID, id int64, name *string, partial bool) (*model.Attribute, error) {
	if name == nil && !partial {
		return nil, apperror.ValidationFailed(attributeNameKey, msgRequired)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		switch {
		case trimmed == "":
			return nil, apperror.ValidationFailed(attributeNameKey, msgFieldBlank)
		case len([]rune(trimmed)) > MaxAttributeNameLength:
			return nil, apperror.ValidationFailed(attributeNameKey, msgTooLong255)
		}
		name = &trimmed
	}

	attr, err := s.repo.GetAttribute(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if name == nil {
		return attr, nil
	}

	attr.Name = *name
	if err := s.repo.UpdateAttribute(ctx, attr); err != nil {
		return nil, fmt.Errorf("updating %s: %w", s.Kind(), err)
	}

	s.logger.Info("attribute updated",
		slog.String("kind", s.Kind().String()),
		slog.Int64("id", id),
	)
	return attr, nil
}

// Delete removes one of the caller's attributes. Recipes that used it lose
// the link and are otherwise unchanged.
func (s *AttributeService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteAttribute(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("attribute deleted",
		slog.String("kind", s.Kind().String()),
		slog.Int64("id", id),
	)
	return nil
}
