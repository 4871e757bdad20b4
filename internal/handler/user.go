package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

// UserHandler covers registration, token issuance and the caller's own
// profile.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type userRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

// userResponse never includes the password hash.
type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// HandleCreate registers a new account.
//
// HTTP: POST /api/user/create
// REQUEST BODY: {"email": "a@example.com", "password": "secret", "name": "A"}
// RESPONSE: 201 {"email": "a@example.com", "name": "A"}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), deref(req.Email), deref(req.Password), deref(req.Name))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleToken exchanges email and password for an access token.
//
// HTTP: POST /api/user/token
// Accepts a JSON body or a urlencoded/multipart form.
func (h *UserHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	email, password, err := readCredentials(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.users.Authenticate(r.Context(), email, password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: result.Token})
}

func readCredentials(w http.ResponseWriter, r *http.Request) (string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseMultipartForm(maxJSONBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return "", "", apperror.ValidationFailed("non_field_errors", "Malformed form body.")
		}
		return r.PostFormValue("email"), r.PostFormValue("password"), nil
	default:
		var req userRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return "", "", err
		}
		return deref(req.Email), deref(req.Password), nil
	}
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/user/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), callerID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateMe is PUT: email, password and name are all required.
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	h.updateMe(w, r, false)
}

// HandlePatchMe is PATCH: any subset of email, password and name.
func (h *UserHandler) HandlePatchMe(w http.ResponseWriter, r *http.Request) {
	h.updateMe(w, r, true)
}

func (h *UserHandler) updateMe(w http.ResponseWriter, r *http.Request, partial bool) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if !partial {
		errs := apperror.FieldErrors{}
		if req.Email == nil {
			errs.Add("email", "This field is required.")
		}
		if req.Password == nil {
			errs.Add("password", "This field is required.")
		}
		if req.Name == nil {
			errs.Add("name", "This field is required.")
		}
		if !errs.Empty() {
			writeError(w, h.logger, apperror.Validation(errs))
			return
		}
	}

	user, err := h.users.UpdateProfile(r.Context(), callerID(r), model.UserPatch{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
