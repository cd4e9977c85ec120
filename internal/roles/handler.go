package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian/internal/hierarchy"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/shared"
)

// Handler exposes the role management and authorization endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Post("/decide", h.decide)
	r.Route("/{roleID}", func(r chi.Router) {
		r.Get("/", h.getRole)
		r.Put("/", h.updateRole)
		r.Delete("/", h.deleteRole)
		r.Get("/effective-permissions", h.effectivePermissions)
		r.Post("/validate", h.validateRole)
	})
}

type rolePayload struct {
	ID              string                         `json:"id" validate:"required,max=128"`
	Name            string                         `json:"name" validate:"required,max=256"`
	Description     string                         `json:"description"`
	InheritFrom     string                         `json:"inherit_from"`
	Level           int                            `json:"level" validate:"min=0,max=5"`
	Priority        int                            `json:"priority"`
	Permissions     []hierarchy.PermissionEntry    `json:"permissions" validate:"dive"`
	ContextualRules []hierarchy.ContextualRule     `json:"contextual_rules"`
	ValidationRules []hierarchy.RoleValidationRule `json:"validation_rules"`
	MaxAssignments  int                            `json:"max_assignments" validate:"min=0"`
	IsActive        bool                           `json:"is_active"`
	IsSystemRole    bool                           `json:"is_system_role"`
}

type decidePayload struct {
	RoleID   string `json:"role_id" validate:"required"`
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
	At       string `json:"at,omitempty"`
	Location string `json:"location,omitempty"`
}

func (p rolePayload) toRole() *hierarchy.Role {
	return &hierarchy.Role{
		ID:              strings.TrimSpace(p.ID),
		Name:            strings.TrimSpace(p.Name),
		Description:     strings.TrimSpace(p.Description),
		InheritFrom:     strings.TrimSpace(p.InheritFrom),
		Level:           hierarchy.Level(p.Level),
		Priority:        p.Priority,
		Permissions:     p.Permissions,
		ContextualRules: p.ContextualRules,
		ValidationRules: p.ValidationRules,
		MaxAssignments:  p.MaxAssignments,
		IsActive:        p.IsActive,
		IsSystemRole:    p.IsSystemRole,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []hierarchy.Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeRolePayload(w, r)
	if !ok {
		return
	}
	role := payload.toRole()
	violations, err := h.service.CreateRole(r.Context(), role)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if len(violations) > 0 {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"violations": violations})
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeRolePayload(w, r)
	if !ok {
		return
	}
	role := payload.toRole()
	role.ID = chi.URLParam(r, "roleID")

	expectedVersion, err := expectedVersionHeader(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	violations, err := h.service.UpdateRole(r.Context(), role, expectedVersion)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if len(violations) > 0 {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"violations": violations})
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.EffectivePermissions(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []hierarchy.PermissionEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"effective_permissions": entries})
}

func (h *Handler) validateRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	violations, err := h.service.Validate(r.Context(), role)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if violations == nil {
		violations = []hierarchy.Violation{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"violations": violations})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var payload decidePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	dc := hierarchy.DecisionContext{At: time.Now().UTC(), Location: payload.Location}
	if payload.At != "" {
		at, err := time.Parse(time.RFC3339, payload.At)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "at must be RFC 3339")
			return
		}
		dc.At = at
	}
	allowed := h.service.Decide(r.Context(), payload.RoleID, payload.Resource, payload.Action, dc)
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *Handler) decodeRolePayload(w http.ResponseWriter, r *http.Request) (rolePayload, bool) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return payload, false
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return payload, false
	}
	return payload, true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
	case errors.Is(err, shared.ErrDuplicateRole):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "role identifier already exists")
	case errors.Is(err, shared.ErrVersionConflict):
		httpx.Problem(w, http.StatusConflict, "Version Conflict", "role changed concurrently, re-read and retry")
	case errors.Is(err, shared.ErrHasDescendants):
		httpx.Problem(w, http.StatusConflict, "Has Descendants", "role still anchors a subtree")
	default:
		h.logger.Error("role handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func expectedVersionHeader(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, errors.New("If-Match header with the current role version is required")
	}
	raw = strings.Trim(raw, `"`)
	var version int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, errors.New("If-Match must carry a numeric role version")
		}
		version = version*10 + int64(c-'0')
	}
	if version <= 0 {
		return 0, errors.New("If-Match must carry a positive role version")
	}
	return version, nil
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
		}
		return strings.Join(parts, "; ")
	}
	return "invalid payload"
}
