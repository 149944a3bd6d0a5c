package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"doclens/internal/api/v1/dto"
	"doclens/internal/apperror"
	"doclens/internal/middleware"
	"doclens/internal/model"
	"doclens/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserHandler handles user profile and role endpoints.
type UserHandler struct {
	userService service.UserService
	roleService service.RoleService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService service.UserService, roleService service.RoleService, v *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, roleService: roleService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.handleUsers)))
	mux.Handle("/users/me/role", authMw(http.HandlerFunc(h.getRole)))
}

func (h *UserHandler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.provisionUser(w, r)
	case http.MethodGet:
		h.getUser(w, r)
	default:
		respondError(w, h.logger, apperror.UnsupportedMethod("GET, POST"))
	}
}

// provisionUser godoc
// @Summary Provision the authenticated user's profile
// @Description Upserts the profile row and seeds the default free role. Safe to repeat.
// @Tags users
// @Accept json
// @Produce json
// @Param user body dto.UserCreateDTO true "Profile fields"
// @Success 201 {object} dto.UserResponseDTO
// @Failure 400 {object} map[string]string "invalid payload"
// @Failure 401 {object} map[string]string "unauthenticated"
// @Router /users/me [post]
func (h *UserHandler) provisionUser(w http.ResponseWriter, r *http.Request) {
	// 1. Extract identity from context
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	// 2. Decode request body into DTO
	var req dto.UserCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, apperror.InvalidInput("invalid JSON payload"))
		return
	}

	// 3. Validate DTO
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, h.logger, apperror.InvalidInput("validation failed: "+err.Error()))
		return
	}

	// 4. Call service to provision the profile
	user, err := h.userService.Provision(r.Context(), &model.User{
		UserID:    identity.UserID,
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	// 5. Return response
	respondJSON(w, h.logger, http.StatusCreated, toUserResponse(user))
}

// getUser godoc
// @Summary Fetch the authenticated user's profile
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {object} map[string]string "unauthenticated"
// @Failure 404 {object} map[string]string "user not provisioned"
// @Router /users/me [get]
func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	user, err := h.userService.Get(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(w, h.logger, apperror.NotFound("user not found"))
			return
		}
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toUserResponse(user))
}

// getRole godoc
// @Summary Fetch the authenticated user's effective role
// @Description Users without a role row read as free with no expiry.
// @Tags users
// @Produce json
// @Success 200 {object} dto.RoleResponseDTO
// @Failure 401 {object} map[string]string "unauthenticated"
// @Router /users/me/role [get]
func (h *UserHandler) getRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, h.logger, apperror.UnsupportedMethod("GET"))
		return
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	role, err := h.roleService.Get(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.RoleResponseDTO{
		Role:          role.Role,
		PlanExpiresAt: role.PlanExpiresAt,
	})
}

func toUserResponse(u *model.User) dto.UserResponseDTO {
	return dto.UserResponseDTO{
		UserID:    u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
