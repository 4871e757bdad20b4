package model

import "fmt"

// AttributeKind distinguishes the two user-scoped labels a recipe can carry.
// Both kinds share one shape and one set of operations.
type AttributeKind int

const (
	KindTag AttributeKind = iota + 1
	KindIngredient
)

// String returns the singular resource name, used in errors and logs.
func (k AttributeKind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindIngredient:
		return "ingredient"
	default:
		return fmt.Sprintf("AttributeKind(%d)", int(k))
	}
}

// Attribute is a Tag or an Ingredient. Names are not unique per user.
type Attribute struct {
	ID     int64         `json:"id"`
	Name   string        `json:"name"`
	UserID int64         `json:"-"`
	Kind   AttributeKind `json:"-"`
}
