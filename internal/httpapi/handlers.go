package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"recordstore"
	"recordstore/resource"
)

const maxBodyBytes = 1 << 20

type ctxKey struct{}

// entityCtx resolves the {entity} parameter to its manager.
func (s *Server) entityCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "entity")
		m, ok := s.registry.Manager(name)
		if !ok {
			jsonError(w, fmt.Sprintf("unknown entity %q", name), http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, m)))
	})
}

func manager(r *http.Request) *resource.Manager {
	return r.Context().Value(ctxKey{}).(*resource.Manager)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := manager(r).Create(r.Context(), rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// list serves ReadAll, or FindWhere with one equality condition per query
// parameter.
func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fields := slices.Sorted(maps.Keys(query))

	conditions := make([]recordstore.Condition, 0, len(fields))
	for _, field := range fields {
		if len(query[field]) > 1 {
			s.fail(w, r, recordstore.NewValidationErrorForField(field, query[field], "filter given more than once"))
			return
		}
		conditions = append(conditions, recordstore.Eq(field, query.Get(field)))
	}

	records, err := manager(r).FindWhere(r.Context(), conditions...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) read(w http.ResponseWriter, r *http.Request) {
	m := manager(r)
	rec, err := m.ReadByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	expand := r.URL.Query().Get("expand")
	if expand == "" {
		writeJSON(w, http.StatusOK, rec)
		return
	}

	refs, err := s.registry.Expand(r.Context(), m.Schema().Name, rec, strings.Split(expand, ","))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body := make(map[string]any, len(rec.Fields)+2)
	maps.Copy(body, rec.Fields)
	body[recordstore.IDField] = rec.ID
	body["_expand"] = refs
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) related(w http.ResponseWriter, r *http.Request) {
	records, err := s.registry.Related(r.Context(),
		manager(r).Schema().Name, chi.URLParam(r, "id"), chi.URLParam(r, "related"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := manager(r).Update(r.Context(), rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) updateByID(w http.ResponseWriter, r *http.Request) {
	m := manager(r)
	id := chi.URLParam(r, "id")

	rec, err := decodeRecord(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := m.UpdateByID(r.Context(), id, rec.Fields); err != nil {
		s.fail(w, r, err)
		return
	}
	jsonMessage(w, fmt.Sprintf("%s %s updated", m.Schema().Name, id))
}

// delete removes the records matching the body, or every record with ?all=true.
func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	m := manager(r)

	if r.URL.Query().Get("all") == "true" {
		if err := m.DeleteAll(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		jsonMessage(w, fmt.Sprintf("all %s deleted", m.Schema().Name))
		return
	}

	rec, err := decodeRecord(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	removed, err := m.Delete(r.Context(), rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request) {
	m := manager(r)
	id := chi.URLParam(r, "id")
	if err := m.DeleteByID(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	jsonMessage(w, fmt.Sprintf("%s %s deleted", m.Schema().Name, id))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) openAPIDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.openapi)
}

// fail maps domain errors to status codes. Store faults are logged and
// answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recordstore.ErrConflict):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, recordstore.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, recordstore.ErrValidation):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeRecord reads a JSON object body.
func decodeRecord(r *http.Request) (recordstore.Record, error) {
	var rec recordstore.Record
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, recordstore.NewValidationError("request body is required")
		}
		return rec, recordstore.NewValidationError("invalid JSON body: " + err.Error())
	}
	return rec, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// jsonError sends a JSON error response
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// jsonMessage sends a JSON success response
func jsonMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}
