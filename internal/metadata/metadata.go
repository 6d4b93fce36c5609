package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/pkg/circuit_breaker"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"

// Client fetches book metadata from the Google Books API. Lookups are
// time-bounded and guarded by a circuit breaker, so a slow catalog never
// drags down the admin import path.
type Client struct {
	http    *http.Client
	baseURL string
	cb      circuit_breaker.CircuitBreaker
}

func NewClient() *Client {
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: googleBooksBase,
		cb:      circuit_breaker.New(10, 30*time.Second, 0.5, 3),
	}
}

// WithBaseURL points the client elsewhere. Test helper.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			PublishedDate string   `json:"publishedDate"`
			Categories    []string `json:"categories"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (c *Client) FetchByISBN(ctx context.Context, isbn string) (model.CreateBookRequest, error) {
	isbn = strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
	if isbn == "" {
		return model.CreateBookRequest{}, errs.Validation("isbn", "required")
	}

	var data volumesResponse
	err := c.cb.Call(func() error {
		q := url.Values{}
		q.Set("q", "isbn:"+isbn)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("google books returned %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&data)
	})
	if err != nil {
		return model.CreateBookRequest{}, errors.Wrap(err, "metadata lookup")
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return model.CreateBookRequest{}, errors.Wrap(errs.ErrNotFound, "no book found for this ISBN")
	}

	info := data.Items[0].VolumeInfo
	req := model.CreateBookRequest{
		Title: info.Title,
		ISBN:  &isbn,
	}
	if req.Title == "" {
		req.Title = "Unknown"
	}
	if len(info.Authors) > 0 {
		author := strings.Join(info.Authors, ", ")
		req.Author = &author
	}
	if len(info.PublishedDate) >= 4 {
		if year, err := strconv.Atoi(info.PublishedDate[:4]); err == nil {
			req.PublicationYear = &year
		}
	}
	if len(info.Categories) > 0 {
		req.Genre = &info.Categories[0]
	}
	return req, nil
}
