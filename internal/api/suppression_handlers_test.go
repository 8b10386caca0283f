package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/suppression"
)

type memSuppressionStore struct {
	entries map[string]*domain.Suppression
}

func (m *memSuppressionStore) Insert(_ context.Context, s *domain.Suppression) (bool, error) {
	if _, ok := m.entries[s.Email]; ok {
		return false, nil
	}
	m.entries[s.Email] = s
	return true, nil
}

func (m *memSuppressionStore) Get(_ context.Context, email string) (*domain.Suppression, error) {
	return m.entries[email], nil
}

func (m *memSuppressionStore) Delete(_ context.Context, email string) (bool, error) {
	if _, ok := m.entries[email]; !ok {
		return false, nil
	}
	delete(m.entries, email)
	return true, nil
}

func (m *memSuppressionStore) List(_ context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	var out []domain.Suppression
	for _, s := range m.entries {
		if f.Reason != "" && s.Reason != f.Reason {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func suppressionRouter() (*chi.Mux, *memSuppressionStore) {
	store := &memSuppressionStore{entries: make(map[string]*domain.Suppression)}
	h := &Handlers{suppressions: suppression.NewService(store, nil)}

	r := chi.NewRouter()
	r.Route("/api/suppressions", func(r chi.Router) {
		r.Get("/", h.ListSuppressions)
		r.Post("/", h.AddSuppression)
		r.Get("/{email}", h.GetSuppression)
		r.Delete("/{email}", h.DeleteSuppression)
	})
	return r, store
}

func TestAddSuppression(t *testing.T) {
	r, store := suppressionRouter()

	body, _ := json.Marshal(map[string]string{"email": "Dana@Example.com", "reason": "manual"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suppressions/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, store.entries, "dana@example.com")
}

func TestAddSuppressionConflict(t *testing.T) {
	r, store := suppressionRouter()
	store.entries["dana@example.com"] = &domain.Suppression{
		ID:     uuid.New(),
		Email:  "dana@example.com",
		Reason: domain.ReasonHardBounce,
	}

	body, _ := json.Marshal(map[string]string{"email": "dana@example.com"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suppressions/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Suppression domain.Suppression `json:"suppression"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// The existing entry is returned; the original reason is untouched.
	assert.Equal(t, domain.ReasonHardBounce, resp.Suppression.Reason)
}

func TestAddSuppressionValidation(t *testing.T) {
	r, _ := suppressionRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"reason":"manual"}`},
		{"unknown reason", `{"email":"dana@example.com","reason":"because"}`},
		{"bad json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suppressions/",
				bytes.NewReader([]byte(tt.body))))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetSuppression(t *testing.T) {
	r, store := suppressionRouter()
	store.entries["dana@example.com"] = &domain.Suppression{
		ID:     uuid.New(),
		Email:  "dana@example.com",
		Reason: domain.ReasonComplaint,
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suppressions/dana@example.com", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suppressions/lee@example.com", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSuppression(t *testing.T) {
	r, store := suppressionRouter()
	store.entries["dana@example.com"] = &domain.Suppression{
		ID:    uuid.New(),
		Email: "dana@example.com",
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/suppressions/dana@example.com", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.entries)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/suppressions/dana@example.com", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSuppressionsFilter(t *testing.T) {
	r, store := suppressionRouter()
	store.entries["a@example.com"] = &domain.Suppression{Email: "a@example.com", Reason: domain.ReasonHardBounce}
	store.entries["b@example.com"] = &domain.Suppression{Email: "b@example.com", Reason: domain.ReasonComplaint}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suppressions/?reason=complaint", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Suppressions []domain.Suppression `json:"suppressions"`
		Total        int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Suppressions, 1)
	assert.Equal(t, "b@example.com", resp.Suppressions[0].Email)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suppressions/?reason=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
