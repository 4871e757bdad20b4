package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/handler"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository/sqlite"
	"github.com/sakif/recipe-api/internal/service"
	"github.com/sakif/recipe-api/internal/storage"
)

// apiHarness serves the handlers over an in-memory database and a temp-dir
// media root, behind the real auth middleware.
type apiHarness struct {
	t      *testing.T
	router http.Handler
	db     *sqlite.DB
	tokens *auth.TokenService
	media  string
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	media := t.TempDir()
	images, err := storage.NewLocal(media, "/media/")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	users := service.NewUserService(db, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)
	userHandler := handler.NewUserHandler(users, logger)
	recipeHandler := handler.NewRecipeHandler(service.NewRecipeService(db, images, 1<<20, logger), logger)
	tagHandler := handler.NewAttributeHandler(service.NewAttributeService(db.Tags(), logger), logger)
	ingredientHandler := handler.NewAttributeHandler(service.NewAttributeService(db.Ingredients(), logger), logger)

	r := chi.NewRouter()
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)
	r.Post("/api/user/create", userHandler.HandleCreate)
	r.Post("/api/user/token", userHandler.HandleToken)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, users, logger))
		r.Get("/api/user/me", userHandler.HandleMe)
		r.Put("/api/user/me", userHandler.HandleUpdateMe)
		r.Patch("/api/user/me", userHandler.HandlePatchMe)

		r.Get("/api/recipe/recipes", recipeHandler.HandleList)
		r.Post("/api/recipe/recipes", recipeHandler.HandleCreate)
		r.Get("/api/recipe/recipes/{id}", recipeHandler.HandleGet)
		r.Put("/api/recipe/recipes/{id}", recipeHandler.HandleUpdate)
		r.Patch("/api/recipe/recipes/{id}", recipeHandler.HandlePatch)
		r.Delete("/api/recipe/recipes/{id}", recipeHandler.HandleDelete)
		r.Post("/api/recipe/recipes/{id}/upload-image", recipeHandler.HandleUploadImage)

		for prefix, h := range map[string]*handler.AttributeHandler{
			"/api/recipe/tags":        tagHandler,
			"/api/recipe/ingredients": ingredientHandler,
		} {
			r.Get(prefix, h.HandleList)
			r.Put(prefix+"/{id}", h.HandleUpdate)
			r.Patch(prefix+"/{id}", h.HandlePatch)
			r.Delete(prefix+"/{id}", h.HandleDelete)
		}
	})

	return &apiHarness{t: t, router: r, db: db, tokens: tokens, media: media}
}

// user creates an active account and returns a bearer token for it.
func (h *apiHarness) user(email string) (int64, string) {
	h.t.Helper()
	u := &model.User{Email: email, IsActive: true}
	require.NoError(h.t, h.db.CreateUser(context.Background(), u))
	token, err := h.tokens.Generate(u.ID)
	require.NoError(h.t, err)
	return u.ID, token
}

func (h *apiHarness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(h.t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *apiHarness) upload(path, token, field, filename string, data []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(h.t, err)
		_, err = fw.Write(data)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

type recipeBody struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	TimeMinutes int               `json:"time_minutes"`
	Price       string            `json:"price"`
	Link        string            `json:"link"`
	Description string            `json:"description"`
	Image       *string           `json:"image"`
	User        int64             `json:"user"`
	Tags        []model.Attribute `json:"tags"`
	Ingredients []model.Attribute `json:"ingredients"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (h *apiHarness) createRecipe(token string, body map[string]any) recipeBody {
	h.t.Helper()
	payload := map[string]any{"title": "Soup", "time_minutes": 20, "price": "4.50"}
	for k, v := range body {
		payload[k] = v
	}
	rr := h.do(http.MethodPost, "/api/recipe/recipes", token, payload)
	require.Equal(h.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[recipeBody](h.t, rr)
}

func names(attrs []model.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

// ===== RECIPE TESTS =====

func TestRecipeCreate_Example(t *testing.T) {
	h := newHarness(t)
	alice, token := h.user("alice@example.com")

	rr := h.do(http.MethodPost, "/api/recipe/recipes", token,
		`{"title":"Soup","time_minutes":20,"price":"4.50"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	got := decode[recipeBody](t, rr)
	assert.NotZero(t, got.ID)
	assert.Equal(t, alice, got.User)
	assert.Equal(t, "Soup", got.Title)
	assert.Equal(t, 20, got.TimeMinutes)
	assert.Equal(t, "4.50", got.Price)
	assert.Nil(t, got.Image)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
	assert.NotNil(t, got.Ingredients)
	assert.Empty(t, got.Ingredients)
}

func TestRecipeCreate_IgnoresUserField(t *testing.T) {
	h := newHarness(t)
	alice, token := h.user("alice@example.com")
	bob, _ := h.user("bob@example.com")

	got := h.createRecipe(token, map[string]any{"user": bob})
	assert.Equal(t, alice, got.User)
}

func TestRecipeCreate_NestedAttributes(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")

	got := h.createRecipe(token, map[string]any{
		"tags":        []map[string]string{{"name": "Dinner"}, {"name": "Quick"}},
		"ingredients": []map[string]string{{"name": "Salt"}},
	})
	assert.ElementsMatch(t, []string{"Dinner", "Quick"}, names(got.Tags))
	assert.Equal(t, []string{"Salt"}, names(got.Ingredients))

	// A second recipe reuses the existing tag instead of creating another.
	h.createRecipe(token, map[string]any{"tags": []map[string]string{{"name": "Dinner"}}})

	rr := h.do(http.MethodGet, "/api/recipe/tags", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Quick", "Dinner"}, names(decode[[]model.Attribute](t, rr)))
}

func TestRecipeCreate_Validation(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"time_minutes":5,"price":"1.00"}`, "title"},
		{"bad price", `{"title":"x","time_minutes":5,"price":"abc"}`, "price"},
		{"too many decimals", `{"title":"x","time_minutes":5,"price":"1.005"}`, "price"},
		{"wrong type", `{"title":"x","time_minutes":"five","price":"1.00"}`, "time_minutes"},
		{"blank tag name", `{"title":"x","time_minutes":5,"price":"1.00","tags":[{"name":""}]}`, "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(http.MethodPost, "/api/recipe/recipes", token, tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			resp := decode[handler.ErrorResponse](t, rr)
			assert.Equal(t, "validation_error", resp.Error)
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
}

func TestRecipeList_UserIsolation(t *testing.T) {
	h := newHarness(t)
	_, alice := h.user("alice@example.com")
	_, bob := h.user("bob@example.com")

	mine := h.createRecipe(alice, map[string]any{"title": "Mine"})
	h.createRecipe(bob, map[string]any{"title": "Theirs"})

	rr := h.do(http.MethodGet, "/api/recipe/recipes", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	list := decode[[]recipeBody](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
}

func TestRecipeList_NewestFirstAndSummaryShape(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")

	first := h.createRecipe(token, nil)
	second := h.createRecipe(token, nil)

	rr := h.do(http.MethodGet, "/api/recipe/recipes", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	require.Len(t, raw, 2)
	assert.EqualValues(t, second.ID, raw[0]["id"])
	assert.EqualValues(t, first.ID, raw[1]["id"])
	assert.NotContains(t, raw[0], "description")
	assert.NotContains(t, raw[0], "image")
	assert.NotContains(t, raw[0], "user")
}

func TestRecipeList_FilterByTagsHasNoDuplicates(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")

	both := h.createRecipe(token, map[string]any{"tags": []map[string]string{{"name": "A"}, {"name": "B"}}})
	onlyB := h.createRecipe(token, map[string]any{"tags": []map[string]string{{"name": "B"}}})
	h.createRecipe(token, map[string]any{"title": "Untagged"})

	var tagA, tagB int64
	for _, tag := range both.Tags {
		switch tag.Name {
		case "A":
			tagA = tag.ID
		case "B":
			tagB = tag.ID
		}
	}

	rr := h.do(http.MethodGet, "/api/recipe/recipes?tags="+itoa(tagA)+","+itoa(tagB), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	list := decode[[]recipeBody](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, onlyB.ID, list[0].ID)
	assert.Equal(t, both.ID, list[1].ID)
}

func TestRecipeList_InvalidFilter(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")

	rr := h.do(http.MethodGet, "/api/recipe/recipes?tags=1,abc", token, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "tags")
}

func TestRecipeGet_NotFound(t *testing.T) {
	h := newHarness(t)
	_, alice := h.user("alice@example.com")
	_, bob := h.user("bob@example.com")
	theirs := h.createRecipe(bob, nil)

	for _, path := range []string{
		"/api/recipe/recipes/" + itoa(theirs.ID),
		"/api/recipe/recipes/9999",
		"/api/recipe/recipes/abc",
	} {
		rr := h.do(http.MethodGet, path, alice, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}

	rr := h.do(http.MethodDelete, "/api/recipe/recipes/"+itoa(theirs.ID), alice, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecipeUpdate(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")
	recipe := h.createRecipe(token, map[string]any{
		"link": "https://example.com/soup",
		"tags": []map[string]string{{"name": "Dinner"}},
	})
	path := "/api/recipe/recipes/" + itoa(recipe.ID)

	t.Run("patch changes only given fields", func(t *testing.T) {
		rr := h.do(http.MethodPatch, path, token, `{"title":"Stew"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		got := decode[recipeBody](t, rr)
		assert.Equal(t, "Stew", got.Title)
		assert.Equal(t, "https://example.com/soup", got.Link)
		assert.Equal(t, []string{"Dinner"}, names(got.Tags))
	})

	t.Run("patch with empty tags clears them", func(t *testing.T) {
		rr := h.do(http.MethodPatch, path, token, `{"tags":[]}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decode[recipeBody](t, rr).Tags)
	})

	t.Run("put requires the mandatory fields", func(t *testing.T) {
		rr := h.do(http.MethodPut, path, token, `{"title":"Stew"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		fields := decode[handler.ErrorResponse](t, rr).Fields
		assert.Contains(t, fields, "time_minutes")
		assert.Contains(t, fields, "price")
	})

	t.Run("put replaces", func(t *testing.T) {
		rr := h.do(http.MethodPut, path, token, `{"title":"Curry","time_minutes":45,"price":"12.00"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		got := decode[recipeBody](t, rr)
		assert.Equal(t, "Curry", got.Title)
		assert.Equal(t, 45, got.TimeMinutes)
		assert.Equal(t, "12.00", got.Price)
	})
}

func TestRecipeDelete(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")
	recipe := h.createRecipe(token, nil)
	path := "/api/recipe/recipes/" + itoa(recipe.ID)

	rr := h.do(http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = h.do(http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ===== IMAGE UPLOAD TESTS =====

func TestUploadImage_Success(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")
	recipe := h.createRecipe(token, nil)
	path := "/api/recipe/recipes/" + itoa(recipe.ID) + "/upload-image"

	rr := h.upload(path, token, "image", "photo.PNG", pngBytes(t))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body, 2, "upload response carries id and image only")
	assert.EqualValues(t, recipe.ID, body["id"])

	url, _ := body["image"].(string)
	require.True(t, strings.HasPrefix(url, "/media/uploads/recipe/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	key := strings.TrimPrefix(url, "/media/")
	_, err := os.Stat(filepath.Join(h.media, filepath.FromSlash(key)))
	assert.NoError(t, err)

	rr = h.do(http.MethodGet, "/api/recipe/recipes/"+itoa(recipe.ID), token, nil)
	got := decode[recipeBody](t, rr)
	require.NotNil(t, got.Image)
	assert.Equal(t, url, *got.Image)
}

func TestUploadImage_Rejected(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")
	recipe := h.createRecipe(token, nil)
	path := "/api/recipe/recipes/" + itoa(recipe.ID) + "/upload-image"

	tests := []struct {
		name  string
		field string
		data  []byte
	}{
		{"not an image", "image", []byte("notanimage")},
		{"empty file", "image", []byte{}},
		{"missing file", "", nil},
		{"wrong field", "photo", []byte("whatever")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.upload(path, token, tt.field, "file.jpg", tt.data)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "image")
		})
	}
}

func TestUploadImage_HTMLExtensionRejected(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")
	recipe := h.createRecipe(token, nil)

	polyglot := append(pngBytes(t), []byte("<script>alert(1)</script>")...)
	rr := h.upload("/api/recipe/recipes/"+itoa(recipe.ID)+"/upload-image", token, "image", "x.html", polyglot)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "image")

	entries, _ := os.ReadDir(filepath.Join(h.media, "uploads", "recipe"))
	assert.Empty(t, entries)
}

func TestUploadImage_MissingRecipeIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")
	path := "/api/recipe/recipes/9999/upload-image"

	rr := h.upload(path, token, "", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "no file")

	rr = h.upload(path, token, "image", "notes.txt", []byte("just text"))
	assert.Equal(t, http.StatusNotFound, rr.Code, "not an image")

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "empty body")
}

func TestUploadImage_OtherUsersRecipe(t *testing.T) {
	h := newHarness(t)
	_, alice := h.user("alice@example.com")
	_, bob := h.user("bob@example.com")
	theirs := h.createRecipe(bob, nil)

	rr := h.upload("/api/recipe/recipes/"+itoa(theirs.ID)+"/upload-image", alice, "image", "a.png", pngBytes(t))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ===== ATTRIBUTE TESTS =====

func TestAttributeList_AssignedOnly(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("alice@example.com")

	recipe := h.createRecipe(token, map[string]any{"ingredients": []map[string]string{{"name": "Salt"}, {"name": "Pepper"}}})
	// Drop Pepper from the recipe; the ingredient itself survives.
	rr := h.do(http.MethodPatch, "/api/recipe/recipes/"+itoa(recipe.ID), token, `{"ingredients":[{"name":"Salt"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodGet, "/api/recipe/ingredients", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Salt", "Pepper"}, names(decode[[]model.Attribute](t, rr)))

	rr = h.do(http.MethodGet, "/api/recipe/ingredients?assigned_only=1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Salt"}, names(decode[[]model.Attribute](t, rr)))

	rr = h.do(http.MethodGet, "/api/recipe/ingredients?assigned_only=0", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Attribute](t, rr), 2)

	rr = h.do(http.MethodGet, "/api/recipe/ingredients?assigned_only=yes", token, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "assigned_only")
}

func TestAttributeDetail(t *testing.T) {
	h := newHarness(t)
	_, alice := h.user("alice@example.com")
	_, bob := h.user("bob@example.com")

	recipe := h.createRecipe(alice, map[string]any{"tags": []map[string]string{{"name": "Dinner"}}})
	tagPath := "/api/recipe/tags/" + itoa(recipe.Tags[0].ID)

	t.Run("get is not allowed", func(t *testing.T) {
		rr := h.do(http.MethodGet, tagPath, alice, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("other user cannot rename", func(t *testing.T) {
		rr := h.do(http.MethodPatch, tagPath, bob, `{"name":"Mine"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("rename", func(t *testing.T) {
		rr := h.do(http.MethodPatch, tagPath, alice, `{"name":"Supper"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		got := decode[model.Attribute](t, rr)
		assert.Equal(t, "Supper", got.Name)
	})

	t.Run("put requires name", func(t *testing.T) {
		rr := h.do(http.MethodPut, tagPath, alice, `{}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "name")
	})

	t.Run("delete keeps the recipe", func(t *testing.T) {
		rr := h.do(http.MethodDelete, tagPath, alice, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = h.do(http.MethodGet, "/api/recipe/recipes/"+itoa(recipe.ID), alice, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decode[recipeBody](t, rr).Tags)
	})
}

// ===== USER TESTS =====

func TestUserCreateTokenMe(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/api/user/create", "",
		`{"email":"Test@EXAMPLE.com","password":"testpass123","name":"Test"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"email":"Test@example.com","name":"Test"}`, rr.Body.String())

	rr = h.do(http.MethodPost, "/api/user/create", "",
		`{"email":"Test@example.com","password":"testpass123","name":"Again"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "email")

	rr = h.do(http.MethodPost, "/api/user/token", "", `{"email":"Test@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "non_field_errors")

	rr = h.do(http.MethodPost, "/api/user/token", "", `{"email":"Test@example.com","password":"testpass123"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	token := decode[map[string]string](t, rr)["token"]
	require.NotEmpty(t, token)

	rr = h.do(http.MethodGet, "/api/user/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"email":"Test@example.com","name":"Test"}`, rr.Body.String())

	rr = h.do(http.MethodPatch, "/api/user/me", token, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Renamed", decode[map[string]string](t, rr)["name"])

	rr = h.do(http.MethodPut, "/api/user/me", token, `{"name":"Only"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	fields := decode[handler.ErrorResponse](t, rr).Fields
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestUserToken_FormEncoded(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/api/user/create", "",
		`{"email":"form@example.com","password":"testpass123","name":"Form"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/user/token",
		strings.NewReader("email=form%40example.com&password=testpass123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, w)["token"])
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{
		"/api/user/me",
		"/api/recipe/recipes",
		"/api/recipe/tags",
		"/api/recipe/ingredients",
	} {
		rr := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)

		rr = h.do(http.MethodGet, path, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
