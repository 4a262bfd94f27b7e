// Package client talks to the course page API. Besides thin wrappers over the
// REST endpoints it offers FetchEditorPage and SaveEditorPage, which apply the
// document transform on the client side so callers work with the nested
// block tree while the server stores the normalized form.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/coursecms/internal/document"
	"github.com/pavelanni/coursecms/internal/model"
)

// ErrNotFound matches an *APIError with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	language   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLanguage sets the Accept-Language header sent with every request.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// New creates a client for the API served at baseURL, including any base
// path (e.g. "http://localhost:8080/cms").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if w := resp.Header.Get("Warning"); w != "" {
		slog.Warn("server warning", "method", method, "path", path, "warning", w)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// ListCourses returns all courses.
func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if err := c.do(ctx, http.MethodGet, "/courses", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// CreateCourse creates a course.
func (c *Client) CreateCourse(ctx context.Context, nc model.NewCourse) (model.Course, error) {
	var course model.Course
	err := c.do(ctx, http.MethodPost, "/courses", nc, &course)
	return course, err
}

// ListChapters returns the chapters of a course.
func (c *Client) ListChapters(ctx context.Context, courseID string) ([]model.Chapter, error) {
	var chapters []model.Chapter
	if err := c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(courseID)+"/chapters", nil, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

// CreateChapter adds a chapter to a course.
func (c *Client) CreateChapter(ctx context.Context, courseID string, nc model.NewChapter) (model.Chapter, error) {
	var chapter model.Chapter
	err := c.do(ctx, http.MethodPost, "/courses/"+url.PathEscape(courseID)+"/chapters", nc, &chapter)
	return chapter, err
}

// ListPages returns page metadata for a course.
func (c *Client) ListPages(ctx context.Context, courseID string) ([]model.Page, error) {
	var pages []model.Page
	if err := c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(courseID)+"/pages", nil, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// CreatePage creates an empty page.
func (c *Client) CreatePage(ctx context.Context, np model.NewPage) (model.Page, error) {
	var page model.Page
	err := c.do(ctx, http.MethodPost, "/pages", np, &page)
	return page, err
}

// FetchPage returns a page in normalized form.
func (c *Client) FetchPage(ctx context.Context, id string) (model.Page, error) {
	var page model.Page
	err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(id), nil, &page)
	return page, err
}

// UpdatePage saves a normalized page document.
func (c *Client) UpdatePage(ctx context.Context, id string, u model.PageUpdate) (model.Page, error) {
	var page model.Page
	err := c.do(ctx, http.MethodPut, "/pages/"+url.PathEscape(id), u, &page)
	return page, err
}

// DeletePage removes a page.
func (c *Client) DeletePage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/pages/"+url.PathEscape(id), nil, nil)
}

// FetchEditorPage loads a page and rebuilds its block tree. Records that
// could not be placed in the tree are returned alongside it.
func (c *Client) FetchEditorPage(ctx context.Context, id string) (model.EditorPage, []document.Orphan, error) {
	page, err := c.FetchPage(ctx, id)
	if err != nil {
		return model.EditorPage{}, nil, err
	}
	tree, orphans := document.Denormalize(page.PageUpdate)
	return tree, orphans, nil
}

// SaveEditorPage normalizes the block tree and saves it. Nothing is sent when
// the tree cannot be normalized.
func (c *Client) SaveEditorPage(ctx context.Context, id string, doc model.EditorPage) (model.Page, error) {
	u, err := document.Normalize(doc)
	if err != nil {
		return model.Page{}, fmt.Errorf("normalize page %s: %w", id, err)
	}
	return c.UpdatePage(ctx, id, u)
}
