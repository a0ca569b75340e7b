package api

import (
	"net/http"

	"github.com/okian/tapforge/internal/domain/crafting"
	"github.com/okian/tapforge/internal/domain/loot"
)

// RecipeBook lists the craft recipes and what they produce.
type RecipeBook interface {
	Recipes() []crafting.Recipe
	ResultTemplate(r loot.Rarity) loot.Template
}

type recipeView struct {
	crafting.Recipe
	Result loot.Template `json:"result"`
}

// RecipeHandler serves the recipe book so clients can explain craft errors.
type RecipeHandler struct {
	book RecipeBook
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(book RecipeBook) *RecipeHandler {
	return &RecipeHandler{book: book}
}

// HandleGetRecipes handles GET /recipes requests.
func (h *RecipeHandler) HandleGetRecipes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := []recipeView{}
	if h.book != nil {
		for _, rec := range h.book.Recipes() {
			out = append(out, recipeView{Recipe: rec, Result: h.book.ResultTemplate(rec.To)})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
