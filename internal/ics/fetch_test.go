package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_GetDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "feedcal-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/ok.ics":
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write(calendar())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithUserAgent("feedcal-test"))

	body, status, err := f.GetDocument(context.Background(), srv.URL+"/ok.ics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, LooksLikeCalendar(body))

	_, status, err = f.GetDocument(context.Background(), srv.URL+"/missing.ics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFetcher_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := NewFetcher(WithMaxBodyBytes(1024))
	_, _, err := f.GetDocument(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrBodyTooLarge))
}

func TestFetcher_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := NewFetcher().GetDocument(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetcher_EmptyURL(t *testing.T) {
	_, _, err := NewFetcher().GetDocument(context.Background(), "")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com/path/private.ics?token=abcd"))
	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com?token=abcd"))
	assert.Equal(t, "ics://...(redacted)", RedactURL("not a url"))
}
