package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

// recipeAction is the operation a recipe request performs.
type recipeAction int

const (
	actionList recipeAction = iota
	actionCreate
	actionRetrieve
	actionUpdate
	actionPartialUpdate
	actionUploadImage
)

// RecipeView is the output shape a recipe is rendered in.
type RecipeView int

const (
	// ViewSummary: id, title, time_minutes, price, link, tags, ingredients.
	ViewSummary RecipeView = iota
	// ViewDetail: the summary plus description, image and user.
	ViewDetail
	// ViewImage: id and image only.
	ViewImage
)

// recipeViews picks the representation for each action. Every action has
// an entry; viewFor panics on a missing one so a new action cannot ship
// without choosing its shape.
var recipeViews = map[recipeAction]RecipeView{
	actionList:          ViewSummary,
	actionCreate:        ViewDetail,
	actionRetrieve:      ViewDetail,
	actionUpdate:        ViewDetail,
	actionPartialUpdate: ViewDetail,
	actionUploadImage:   ViewImage,
}

func viewFor(a recipeAction) RecipeView {
	v, ok := recipeViews[a]
	if !ok {
		panic("handler: no view for recipe action " + strconv.Itoa(int(a)))
	}
	return v
}

type recipeSummary struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	TimeMinutes int               `json:"time_minutes"`
	Price       model.Price       `json:"price"`
	Link        string            `json:"link"`
	Tags        []model.Attribute `json:"tags"`
	Ingredients []model.Attribute `json:"ingredients"`
}

type recipeDetail struct {
	recipeSummary
	Description string  `json:"description"`
	Image       *string `json:"image"`
	User        int64   `json:"user"`
}

type recipeImage struct {
	ID    int64   `json:"id"`
	Image *string `json:"image"`
}

// attributeInput is one element of a nested "tags"/"ingredients" array.
type attributeInput struct {
	Name string `json:"name"`
}

// recipeRequest is the create/update payload. Price is kept raw so a bad
// value becomes a "price" field error instead of a body parse error.
// Ownership fields ("user", "id") are not decoded at all.
type recipeRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	TimeMinutes *int             `json:"time_minutes"`
	Price       json.RawMessage  `json:"price"`
	Link        *string          `json:"link"`
	Tags        []attributeInput `json:"tags"`
	Ingredients []attributeInput `json:"ingredients"`
}

func (req recipeRequest) toInput() (model.RecipeInput, error) {
	in := model.RecipeInput{
		Title:       req.Title,
		Description: req.Description,
		TimeMinutes: req.TimeMinutes,
		Link:        req.Link,
		Tags:        attributeNames(req.Tags),
		Ingredients: attributeNames(req.Ingredients),
	}
	if len(req.Price) > 0 && string(req.Price) != "null" {
		var p model.Price
		if err := p.UnmarshalJSON(req.Price); err != nil {
			return in, apperror.ValidationFailed("price", err.Error())
		}
		in.Price = &p
	}
	return in, nil
}

// attributeNames keeps nil as nil (field absent) and [] as [] (clear).
func attributeNames(items []attributeInput) []string {
	if items == nil {
		return nil
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}

// RecipeHandler is the recipe viewset: list/create on the collection,
// retrieve/update/delete on a detail route, and the upload-image action.
// Every operation is scoped to the authenticated caller.
type RecipeHandler struct {
	recipes *service.RecipeService
	logger  *slog.Logger
}

func NewRecipeHandler(recipes *service.RecipeService, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, logger: logger}
}

// render builds the response body for recipe r under action.
func (h *RecipeHandler) render(action recipeAction, r *model.Recipe) any {
	summary := recipeSummary{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Tags:        nonNilAttrs(r.Tags),
		Ingredients: nonNilAttrs(r.Ingredients),
	}

	switch viewFor(action) {
	case ViewDetail:
		return recipeDetail{
			recipeSummary: summary,
			Description:   r.Description,
			Image:         h.imageURL(r.Image),
			User:          r.UserID,
		}
	case ViewImage:
		return recipeImage{ID: r.ID, Image: h.imageURL(r.Image)}
	default:
		return summary
	}
}

func (h *RecipeHandler) imageURL(key string) *string {
	if key == "" {
		return nil
	}
	u := h.recipes.ImageURL(key)
	return &u
}

func nonNilAttrs(a []model.Attribute) []model.Attribute {
	if a == nil {
		return []model.Attribute{}
	}
	return a
}

// HandleList returns the caller's recipes.
//
// HTTP: GET /api/recipe/recipes?tags=1,2&ingredients=3
//
// A recipe matches when it has ANY of the listed tags and (if given) ANY of
// the listed ingredients.
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	tagIDs, err := parseIDList(r.URL.Query().Get("tags"), "tags")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ingredientIDs, err := parseIDList(r.URL.Query().Get("ingredients"), "ingredients")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipes, err := h.recipes.List(r.Context(), userID, model.RecipeFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]any, len(recipes))
	for i := range recipes {
		out[i] = h.render(actionList, &recipes[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate saves a new recipe owned by the caller.
//
// HTTP: POST /api/recipe/recipes
// REQUEST BODY: {"title": "Soup", "time_minutes": 20, "price": "4.50", "tags": [{"name": "Dinner"}]}
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := h.decode(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.recipes.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.render(actionCreate, recipe))
}

// HandleGet returns one of the caller's recipes.
//
// HTTP: GET /api/recipe/recipes/{id}
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.recipes.Get(r.Context(), callerID(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(actionRetrieve, recipe))
}

// HandleUpdate is PUT: title, time_minutes and price are required.
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, actionUpdate)
}

// HandlePatch is PATCH: only the fields present are changed.
func (h *RecipeHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, actionPartialUpdate)
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, action recipeAction) {
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := h.decode(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.recipes.Update(r.Context(), callerID(r), id, in, action == actionPartialUpdate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(action, recipe))
}

// HandleDelete removes one of the caller's recipes.
//
// HTTP: DELETE /api/recipe/recipes/{id} → 204 No Content
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.recipes.Delete(r.Context(), callerID(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadImage stores the multipart field "image" as the recipe's image.
//
// HTTP: POST /api/recipe/recipes/{id}/upload-image
// 200 {"id": 1, "image": "/media/uploads/recipe/<uuid>.png"} on success,
// 400 {"fields": {"image": [...]}} for a missing, oversized or non-image file.
func (h *RecipeHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recipe")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Resolve the recipe before looking at the payload: a missing or
	// foreign recipe is a 404 even when the body is malformed.
	if _, err := h.recipes.Get(r.Context(), callerID(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	limit := h.recipes.MaxUploadBytes()
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, h.logger, apperror.ValidationFailed("image",
				"Ensure this file is no larger than "+strconv.FormatInt(limit, 10)+" bytes."))
			return
		}
		writeError(w, h.logger, apperror.ValidationFailed("image",
			"The submitted data was not a file. Check the encoding type on the form."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var (
		data     []byte
		filename string
	)
	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// data stays nil: "no file was submitted"
	case err != nil:
		writeError(w, h.logger, err)
		return
	default:
		defer file.Close()
		filename = header.Filename
		data, err = io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	recipe, err := h.recipes.UploadImage(r.Context(), callerID(r), id, filename, data)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(actionUploadImage, recipe))
}

func (h *RecipeHandler) decode(w http.ResponseWriter, r *http.Request) (model.RecipeInput, error) {
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return model.RecipeInput{}, err
	}
	return req.toInput()
}

// callerID returns the authenticated user. Routes using it sit behind
// auth.RequireAuth, so the ID is always present.
func callerID(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
