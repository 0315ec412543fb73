package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CredentialSource supplies the bearer token for authenticated requests.
// Implemented by the session store; returning an empty token means the
// caller is not authenticated.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the tome backend REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	creds     CredentialSource
	userAgent string
}

const (
	defaultUserAgent = "tome/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client for the given server address. The credential
// source may be nil until SetCredentialSource is called; only the anonymous
// auth endpoints work without one.
func NewClient(serverURL string) (*Client, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// SetCredentialSource wires the session store in after construction. The
// session needs a client to verify tokens, so the two are connected in a
// second step.
func (c *Client) SetCredentialSource(src CredentialSource) {
	c.creds = src
}

// Login exchanges credentials for a token pair. The user record is included
// when the backend inlines it; callers fall back to Profile otherwise.
func (c *Client) Login(ctx context.Context, username, password string) (Credential, *User, error) {
	var payload loginResponse
	err := c.do(ctx, http.MethodPost, "/api/users/login/", false, loginRequest{Username: username, Password: password}, &payload)
	if err != nil {
		return Credential{}, nil, err
	}
	return Credential{Access: payload.Access, Refresh: payload.Refresh}, payload.User, nil
}

// Register creates an account. Field-validation failures surface as a
// Validation error carrying the server's field map.
func (c *Client) Register(ctx context.Context, input RegisterInput) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/users/register/", false, input, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// RefreshToken exchanges the refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	var payload refreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/token/refresh/", false, refreshRequest{Refresh: refresh}, &payload); err != nil {
		return "", err
	}
	return payload.Access, nil
}

// VerifyToken asks the backend whether an access token is still valid.
// An invalid token returns an Unauthenticated error.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/token/verify/", false, verifyRequest{Token: token}, nil)
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile/", true, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListReadingStatuses retrieves one page of the user's library. Page values
// below 1 request the first page.
func (c *Client) ListReadingStatuses(ctx context.Context, page int) (ReadingStatusPage, error) {
	rel := &url.URL{Path: "/api/reading-statuses/"}
	if page > 1 {
		values := url.Values{}
		values.Set("page", strconv.Itoa(page))
		rel.RawQuery = values.Encode()
	}
	var payload ReadingStatusPage
	if err := c.doURL(ctx, http.MethodGet, rel, true, nil, &payload); err != nil {
		return ReadingStatusPage{}, err
	}
	return payload, nil
}

// CreateReadingStatus adds a book to the library and returns the canonical
// server record.
func (c *Client) CreateReadingStatus(ctx context.Context, input CreateReadingStatusInput) (ReadingStatus, error) {
	var created ReadingStatus
	if err := c.do(ctx, http.MethodPost, "/api/reading-statuses/", true, input, &created); err != nil {
		return ReadingStatus{}, err
	}
	return created, nil
}

// UpdateReadingStatus patches a reading-status record and returns the
// server's reconciled version.
func (c *Client) UpdateReadingStatus(ctx context.Context, id int64, patch ReadingStatusPatch) (ReadingStatus, error) {
	var updated ReadingStatus
	path := fmt.Sprintf("/api/reading-statuses/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, true, patch, &updated); err != nil {
		return ReadingStatus{}, err
	}
	return updated, nil
}

// DeleteReadingStatus removes a book from the library.
func (c *Client) DeleteReadingStatus(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/reading-statuses/%d/", id), true, nil, nil)
}

// ListShelves retrieves all of the user's bookshelves.
func (c *Client) ListShelves(ctx context.Context) ([]Shelf, error) {
	var payload shelfListResponse
	if err := c.do(ctx, http.MethodGet, "/api/bookshelves/", true, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// GetShelf retrieves a single bookshelf.
func (c *Client) GetShelf(ctx context.Context, id int64) (Shelf, error) {
	var shelf Shelf
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/bookshelves/%d/", id), true, nil, &shelf); err != nil {
		return Shelf{}, err
	}
	return shelf, nil
}

// CreateShelf creates a bookshelf. When cover is non-nil the request is sent
// as multipart form data with the image attached.
func (c *Client) CreateShelf(ctx context.Context, input ShelfInput, cover *Upload) (Shelf, error) {
	var shelf Shelf
	if cover != nil {
		err := c.doMultipart(ctx, http.MethodPost, "/api/bookshelves/", shelfFields(input), cover, &shelf)
		if err != nil {
			return Shelf{}, err
		}
		return shelf, nil
	}
	body := map[string]any{"name": input.Name, "description": input.Description, "is_public": input.IsPublic}
	if err := c.do(ctx, http.MethodPost, "/api/bookshelves/", true, body, &shelf); err != nil {
		return Shelf{}, err
	}
	return shelf, nil
}

// UpdateShelf patches a bookshelf, as multipart when a new cover is attached.
func (c *Client) UpdateShelf(ctx context.Context, id int64, input ShelfInput, cover *Upload) (Shelf, error) {
	path := fmt.Sprintf("/api/bookshelves/%d/", id)
	var shelf Shelf
	if cover != nil {
		if err := c.doMultipart(ctx, http.MethodPatch, path, shelfFields(input), cover, &shelf); err != nil {
			return Shelf{}, err
		}
		return shelf, nil
	}
	body := map[string]any{"name": input.Name, "description": input.Description, "is_public": input.IsPublic}
	if err := c.do(ctx, http.MethodPatch, path, true, body, &shelf); err != nil {
		return Shelf{}, err
	}
	return shelf, nil
}

// DeleteShelf removes a bookshelf.
func (c *Client) DeleteShelf(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/bookshelves/%d/", id), true, nil, nil)
}

// ListShelfBooks retrieves the books on a shelf.
func (c *Client) ListShelfBooks(ctx context.Context, shelfID int64) ([]Book, error) {
	var payload shelfBooksResponse
	path := fmt.Sprintf("/api/bookshelves/%d/books/", shelfID)
	if err := c.do(ctx, http.MethodGet, path, true, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// AddShelfBook places a book on a shelf.
func (c *Client) AddShelfBook(ctx context.Context, shelfID, bookID int64) error {
	path := fmt.Sprintf("/api/bookshelves/%d/books/", shelfID)
	return c.do(ctx, http.MethodPost, path, true, addShelfBookRequest{BookID: bookID}, nil)
}

// RemoveShelfBook takes a book off a shelf.
func (c *Client) RemoveShelfBook(ctx context.Context, shelfID, bookID int64) error {
	path := fmt.Sprintf("/api/bookshelves/%d/books/%d/", shelfID, bookID)
	return c.do(ctx, http.MethodDelete, path, true, nil, nil)
}

func shelfFields(input ShelfInput) map[string]string {
	fields := map[string]string{
		"name":        input.Name,
		"description": input.Description,
		"is_public":   "false",
	}
	if input.IsPublic {
		fields["is_public"] = "true"
	}
	return fields
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, authed, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, authed bool, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, rel, authed, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, dest)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, file *Upload, dest any) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("encode form field: %w", err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("cover_image", file.Filename)
		if err != nil {
			return fmt.Errorf("encode form file: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish form: %w", err)
	}

	req, err := c.newRequest(ctx, method, &url.URL{Path: path}, true, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, dest)
}

// newRequest resolves the auth requirement before any bytes hit the wire:
// an authed request without an available token never reaches the network.
func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL, authed bool, body io.Reader) (*http.Request, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var token string
	if authed {
		if c.creds == nil {
			return nil, unauthenticatedError("not signed in")
		}
		t, err := c.creds.Token(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(t) == "" {
			return nil, unauthenticatedError("not signed in")
		}
		token = t
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return classify(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify maps a non-2xx response onto the error taxonomy. The body is
// consumed here; callers must not read it again.
func classify(resp *http.Response) *Error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &Error{Kind: Unauthenticated, Status: resp.StatusCode, Message: "session expired or invalid"}
	case http.StatusNotFound:
		return &Error{Kind: NotFound, Status: resp.StatusCode, Message: "not found"}
	case http.StatusBadRequest:
		return validationError(resp)
	default:
		return &Error{
			Kind:    ServerError,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("server error (status %d)", resp.StatusCode),
		}
	}
}

// validationError decodes the server's field-error payload. The backend
// returns either {"field": ["msg"]} maps or a {"detail": "msg"} wrapper.
func validationError(resp *http.Response) *Error {
	apiErr := &Error{Kind: Validation, Status: resp.StatusCode, Message: "invalid input"}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return apiErr
	}
	fields := make(map[string][]string, len(raw))
	for name, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[name] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			fields[name] = []string{single}
		}
	}
	if detail, ok := fields["detail"]; ok && len(detail) > 0 {
		apiErr.Message = detail[0]
		delete(fields, "detail")
	}
	if len(fields) > 0 {
		apiErr.Fields = fields
	}
	return apiErr
}

func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		return nil, fmt.Errorf("server url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
