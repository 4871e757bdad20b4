package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/service"
)

// AttributeHandler is the viewset shared by tags and ingredients: list,
// update and delete. There is no create and no retrieve-by-id; GET on a
// detail route is 405.
type AttributeHandler struct {
	attrs  *service.AttributeService
	logger *slog.Logger
}

func NewAttributeHandler(attrs *service.AttributeService, logger *slog.Logger) *AttributeHandler {
	return &AttributeHandler{attrs: attrs, logger: logger}
}

type attributeRequest struct {
	Name *string `json:"name"`
}

// HandleList returns the caller's tags (or ingredients), name descending.
//
// HTTP: GET /api/recipe/tags?assigned_only=1
//
// assigned_only is read as an integer: any non-zero value keeps only the
// attributes attached to at least one of the caller's recipes.
func (h *AttributeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	assignedOnly, err := parseFlag(r.URL.Query().Get("assigned_only"), "assigned_only")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	attrs, err := h.attrs.List(r.Context(), callerID(r), assignedOnly)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

// HandleUpdate is PUT: name is required.
func (h *AttributeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch is PATCH: name may be omitted.
func (h *AttributeHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *AttributeHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	id, err := pathID(r, h.attrs.Kind().String())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req attributeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	attr, err := h.attrs.Update(r.Context(), callerID(r), id, req.Name, partial)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

// HandleDelete removes one of the caller's attributes → 204.
func (h *AttributeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.attrs.Kind().String())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.attrs.Delete(r.Context(), callerID(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseFlag reads an integer query flag: absent or "0" is false, any other
// integer is true.
func parseFlag(raw, param string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return false, apperror.ValidationFailed(param, "A valid integer is required.")
	}
	return n != 0, nil
}
