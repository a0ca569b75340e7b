package crafting

import (
	"errors"
	"fmt"

	"github.com/okian/tapforge/internal/domain/loot"
)

// Craft precondition failures. Every *Error unwraps to one of these.
var (
	ErrEmptySelection  = errors.New("no items selected")
	ErrUnauthenticated = errors.New("crafting requires a signed-in player")
	ErrNotOwned        = errors.New("selected item is not in the inventory")
	ErrMixedRarity     = errors.New("selected items differ in rarity")
	ErrNoRecipe        = errors.New("no recipe consumes this rarity")
	ErrWrongCount      = errors.New("wrong number of items selected")
)

// Error is a typed craft rejection carrying the details a UI needs.
type Error struct {
	Kind   error
	Rarity loot.Rarity
	Got    int
	Want   int
	// IDs lists the offending ids for ErrNotOwned.
	IDs []string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrWrongCount:
		return fmt.Sprintf("%v: %s needs %d, got %d", e.Kind, e.Rarity, e.Want, e.Got)
	case ErrNoRecipe:
		return fmt.Sprintf("%v: %s", e.Kind, e.Rarity)
	case ErrNotOwned:
		return fmt.Sprintf("%v: %v", e.Kind, e.IDs)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error { return e.Kind }

// Code returns the stable machine-readable code of a craft error, or an
// empty string if err is not one.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEmptySelection):
		return "empty_selection"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotOwned):
		return "not_owned"
	case errors.Is(err, ErrMixedRarity):
		return "mixed_rarity"
	case errors.Is(err, ErrNoRecipe):
		return "no_recipe"
	case errors.Is(err, ErrWrongCount):
		return "wrong_count"
	default:
		return ""
	}
}
