package family

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(backend.NewClient(srv.URL, time.Second, logging.Default()), logging.Default())
}

func TestCreateMember(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/family-members", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "holder-1", req.HolderID)
		assert.Equal(t, "Ana", req.Name)

		_ = json.NewEncoder(w).Encode(Member{ID: "fm-1", HolderID: req.HolderID, Name: req.Name})
	})

	out, err := svc.CreateMember(context.Background(), CreateRequest{HolderID: "holder-1", Name: "Ana"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "fm-1", out.ID)
}

func TestUpdateMember(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/family-members/fm-9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Member{ID: "fm-9", Name: "Ana"})
	})

	out, err := svc.UpdateMember(context.Background(), "fm-9", CreateRequest{Name: "Ana"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "fm-9", out.ID)
}

func TestMyFamily(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/family-members/mine", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Member{{ID: "fm-1"}, {ID: "fm-2"}})
	})

	out, err := svc.MyFamily(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCreateMemberServerError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"El DNI ya está registrado"}`))
	})

	_, err := svc.CreateMember(context.Background(), CreateRequest{}, "tok")
	require.Error(t, err)

	var be *backend.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "El DNI ya está registrado", be.Message)
}
