package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, runHealth(srv.URL, &out))
	assert.Contains(t, out.String(), "ok")
}

func TestRunTrigger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/usage-reset", r.URL.Path)
		_, _ = w.Write([]byte(`{"job":"usage-reset","status":"ran"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, runTrigger(srv.URL, "usage-reset", &out))
	assert.Contains(t, out.String(), "ran")
}

func TestRunTriggerUnknownJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runTrigger(srv.URL, "nope", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
