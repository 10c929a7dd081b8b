package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianoklecha/turnos-core/pkg/logging"
)

func TestDoJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/things", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"t-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logging.Default())

	var out struct {
		ID string `json:"id"`
	}
	err := c.DoJSON(context.Background(), http.MethodPost, "/things", "token-1", map[string]string{"name": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "t-1", out.ID)
}

func TestDoJSONServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"El DNI ya está registrado"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logging.Default())

	err := c.DoJSON(context.Background(), http.MethodPost, "/things", "", nil, nil)
	require.Error(t, err)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusConflict, be.Status)
	assert.Equal(t, "El DNI ya está registrado", be.Message)
	assert.Equal(t, "El DNI ya está registrado", UserMessage(err, "fallback"))
}

func TestDoJSONErrorFieldFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"solicitud inválida"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logging.Default())
	err := c.DoJSON(context.Background(), http.MethodGet, "/things", "", nil, nil)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "solicitud inválida", be.Message)
}

func TestDoJSONOpaqueBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logging.Default())
	err := c.DoJSON(context.Background(), http.MethodGet, "/things", "", nil, nil)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "backend API returned 500", be.Message)
	assert.Equal(t, "fallback", UserMessage(errors.New("plain"), "fallback"))
}
