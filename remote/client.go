// Package remote is the HTTP client for the upstream catalogue and auth APIs.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"movie-mate/model"
)

const defaultTimeout = 5 * time.Second

// StatusError is returned when the upstream answers with a non-2xx status,
// or with a 2xx auth envelope reporting success=false
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Temporary reports whether the failure is on the upstream side
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ErrNotConfigured is returned for calls against a base URL that was left empty
var ErrNotConfigured = errors.New("remote endpoint not configured")

type Config struct {
	APIBaseURL  string // catalogue API root, e.g. http://localhost:8000/api
	AuthBaseURL string // auth API root, e.g. http://localhost:5000/api/auth
	Timeout     time.Duration
}

type Client struct {
	apiBaseURL  string
	authBaseURL string
	client      *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	authBaseURL := cfg.AuthBaseURL
	if authBaseURL == "" && cfg.APIBaseURL != "" {
		authBaseURL = strings.TrimRight(cfg.APIBaseURL, "/") + "/auth"
	}

	return &Client{
		apiBaseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		authBaseURL: strings.TrimRight(authBaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type request struct {
	method      string
	base        string
	path        string
	token       string
	body        io.Reader
	contentType string
}

// do sends the request and decodes a 2xx JSON body into out (when non-nil)
func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.base == "" {
		return ErrNotConfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.method, r.base+r.path, r.body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, base: c.apiBaseURL, path: path, token: token}, out)
}

func (c *Client) postJSON(ctx context.Context, base, path, token string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, request{
		method:      http.MethodPost,
		base:        base,
		path:        path,
		token:       token,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, out)
}

// errorMessage pulls a message out of an error body, accepting
// {"message": ...}, {"error": ...} and {"detail": ...}
func errorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, msg := range []string{envelope.Message, envelope.Error, envelope.Detail} {
			if msg != "" {
				return msg
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// Movies fetches the whole upstream catalogue
func (c *Client) Movies(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := c.getJSON(ctx, "/movies/", "", &movies); err != nil {
		return nil, err
	}
	return nonNil(movies), nil
}

func (c *Client) PaginatedMovies(ctx context.Context, page, limit int) (model.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var result model.Page
	if err := c.getJSON(ctx, "/movies/paginated?"+query.Encode(), "", &result); err != nil {
		return model.Page{}, err
	}
	result.Movies = nonNil(result.Movies)
	return result, nil
}

func (c *Client) Movie(ctx context.Context, id int) (model.MovieDetail, error) {
	var detail model.MovieDetail
	if err := c.getJSON(ctx, fmt.Sprintf("/movies/%d/", id), "", &detail); err != nil {
		return model.MovieDetail{}, err
	}
	return detail, nil
}

func (c *Client) Search(ctx context.Context, q string) ([]model.Movie, error) {
	var movies []model.Movie
	if err := c.getJSON(ctx, "/movies/search/?q="+url.QueryEscape(q), "", &movies); err != nil {
		return nil, err
	}
	return nonNil(movies), nil
}

func (c *Client) Rate(ctx context.Context, token string, movieID, rating int) error {
	payload := map[string]int{"rating": rating}
	return c.postJSON(ctx, c.apiBaseURL, fmt.Sprintf("/movies/%d/rate/", movieID), token, payload, nil)
}

func (c *Client) Recommendations(ctx context.Context, token string) ([]model.Recommendation, error) {
	var recs []model.Recommendation
	if err := c.getJSON(ctx, "/recommendations/", token, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	return recs, nil
}

func (c *Client) UserRatings(ctx context.Context, token string) ([]model.Rating, error) {
	var ratings []model.Rating
	if err := c.getJSON(ctx, "/ratings/", token, &ratings); err != nil {
		return nil, err
	}
	if ratings == nil {
		ratings = []model.Rating{}
	}
	return ratings, nil
}

// UploadDataset posts the dataset as the multipart field "file"
func (c *Client) UploadDataset(ctx context.Context, token, filename string, content []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return c.do(ctx, request{
		method:      http.MethodPost,
		base:        c.apiBaseURL,
		path:        "/movies/upload-dataset/",
		token:       token,
		body:        &buf,
		contentType: writer.FormDataContentType(),
	}, nil)
}

func nonNil(movies []model.Movie) []model.Movie {
	if movies == nil {
		return []model.Movie{}
	}
	return movies
}
