package metadata_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/metadata"
)

func TestFetchByISBN(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "isbn:9780441013593", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"totalItems": 1,
			"items": [{
				"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"publishedDate": "1965-08-01",
					"categories": ["Fiction"]
				}
			}]
		}`))
	}))
	defer srv.Close()

	c := metadata.NewClient().WithBaseURL(srv.URL)
	req, err := c.FetchByISBN(context.Background(), "978-0-441-01359-3")
	require.NoError(t, err)

	require.Equal(t, "Dune", req.Title)
	require.Equal(t, "Frank Herbert", *req.Author)
	require.Equal(t, 1965, *req.PublicationYear)
	require.Equal(t, "Fiction", *req.Genre)
	require.Equal(t, "9780441013593", *req.ISBN)
}

func TestFetchByISBN_NotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer srv.Close()

	c := metadata.NewClient().WithBaseURL(srv.URL)
	_, err := c.FetchByISBN(context.Background(), "9780000000000")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFetchByISBN_EmptyISBN(t *testing.T) {
	t.Parallel()
	c := metadata.NewClient()
	_, err := c.FetchByISBN(context.Background(), "  ")
	require.True(t, errs.IsValidation(err))
}
