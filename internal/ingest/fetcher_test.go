package ingest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilowulf/livdoc/internal/apperr"
)

func TestHTTPFetcherFetch(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	data, err := f.Fetch(context.Background(), server.URL, 2048)

	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestHTTPFetcherFetchOversize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 4096))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 1024)

	assert.ErrorIs(t, err, apperr.ErrPolicyExceeded)
}

func TestHTTPFetcherFetchExactLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 1024))
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	data, err := f.Fetch(context.Background(), server.URL, 1024)

	require.NoError(t, err)
	assert.Len(t, data, 1024)
}

func TestHTTPFetcherFetchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTPFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 1024)

	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestHTTPFetcherFetchUnreachable(t *testing.T) {
	f := NewHTTPFetcher()
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nope", 1024)

	assert.ErrorIs(t, err, apperr.ErrUpstream)
}
