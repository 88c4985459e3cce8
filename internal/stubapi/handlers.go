package stubapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// resourceParam validates the {resource} URL segment.
func resourceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	resource := chi.URLParam(r, "resource")
	if !ValidResource(resource) {
		writeError(w, http.StatusNotFound, "unknown resource")
		return "", false
	}
	return resource, true
}

// requireAdmin enforces the admin role for mutations and the users
// collection.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if UserID(r.Context()) == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if Role(r.Context()) != "admin" {
		writeError(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

// Login handles POST /v1/auth/login. Dev-only credential check against the
// seeded user documents; the issued token carries the user's role.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.Store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if pw, _ := user["password"].(string); pw != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id, _ := user["id"].(string)
	role, _ := user["role"].(string)
	token, err := IssueToken(s.JWT, id, role)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	delete(user, "password")
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"token": token, "user": user},
	})
}

// ListEntities handles GET /v1/{resource} with page/limit/search/status/
// category query params, answering the platform's list envelope.
func (s *Server) ListEntities(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(w, r)
	if !ok {
		return
	}
	if resource == ResourceUsers && !requireAdmin(w, r) {
		return
	}

	q := r.URL.Query()
	params := ListParams{
		Page:     parsePage(q.Get("page")),
		PerPage:  parseLimit(q.Get("limit"), defaultPerPage, maxPerPage),
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Category: q.Get("category"),
	}

	items, total, err := s.Store.List(r.Context(), resource, params)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("resource", resource).Msg("list failed")
		writeError(w, http.StatusInternalServerError, "failed to list "+resource)
		return
	}

	if resource == ResourceUsers {
		for _, item := range items {
			delete(item, "password")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			resource: items,
			"pagination": map[string]any{
				"current_page": params.Page,
				"total_pages":  totalPages(total, params.PerPage),
				"total":        total,
				"per_page":     params.PerPage,
			},
		},
	})
}

// GetEntity handles GET /v1/{resource}/{id}.
func (s *Server) GetEntity(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(w, r)
	if !ok {
		return
	}
	if resource == ResourceUsers && !requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := s.Store.Get(r.Context(), resource, id)
	if errors.Is(err, ErrNoSuchEntity) {
		writeError(w, http.StatusNotFound, resource+" not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("get failed")
		writeError(w, http.StatusInternalServerError, "failed to get "+resource)
		return
	}

	delete(doc, "password")
	writeJSON(w, http.StatusOK, map[string]any{"data": doc})
}

// CreateEntity handles POST /v1/{resource}. Admin only.
func (s *Server) CreateEntity(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if name, _ := doc["name"].(string); name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	created, err := s.Store.Create(r.Context(), resource, doc)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("create failed")
		writeError(w, http.StatusInternalServerError, "failed to create "+resource)
		return
	}

	delete(created, "password")
	writeJSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateEntity handles PUT /v1/{resource}/{id}. The body is a partial
// document: only the fields present are merged into the entity. Admin only.
func (s *Server) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if name, present := changes["name"]; present {
		if n, _ := name.(string); n == "" {
			writeError(w, http.StatusUnprocessableEntity, "name must not be empty")
			return
		}
	}

	id := chi.URLParam(r, "id")
	updated, err := s.Store.Update(r.Context(), resource, id, changes)
	if errors.Is(err, ErrNoSuchEntity) {
		writeError(w, http.StatusNotFound, resource+" not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("update failed")
		writeError(w, http.StatusInternalServerError, "failed to update "+resource)
		return
	}

	delete(updated, "password")
	writeJSON(w, http.StatusOK, map[string]any{"data": updated})
}

// DeleteEntity handles DELETE /v1/{resource}/{id}. Admin only.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	err := s.Store.Delete(r.Context(), resource, id)
	if errors.Is(err, ErrNoSuchEntity) {
		writeError(w, http.StatusNotFound, resource+" not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("delete failed")
		writeError(w, http.StatusInternalServerError, "failed to delete "+resource)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
