// Package remote is the HTTP client for the authoritative note service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
)

// TransientError wraps an error that is likely temporary and safe to retry.
// It matches errs.ErrTransientNetwork under errors.Is.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errs.ErrTransientNetwork) match any TransientError.
func (e *TransientError) Is(target error) bool { return target == errs.ErrTransientNetwork }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller should retry on the next trigger.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// RejectionError is a permanent refusal of a request by the remote store,
// for example a permission or validation failure. It matches
// errs.ErrRemoteRejection under errors.Is.
type RejectionError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("remote %s rejected (%d): %s", e.Endpoint, e.Status, e.Message)
}

// Is lets errors.Is(err, errs.ErrRemoteRejection) match any RejectionError.
func (e *RejectionError) Is(target error) bool { return target == errs.ErrRemoteRejection }

const (
	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxResponseBytes caps response body reads. A full note listing is
	// the largest payload.
	maxResponseBytes = 32 * 1024 * 1024

	// maxErrorBodyLen caps how much of an error body ends up in messages.
	maxErrorBodyLen = 256
)

// Client talks to the note service REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates an API client for baseURL. If httpClient is nil, a
// client with a 30-second timeout is created. token is sent as a bearer
// credential when non-empty.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// listResponse is the body of a note listing.
type listResponse struct {
	Notes []models.Note `json:"notes"`
}

// List returns every note owned by ownerID.
func (c *Client) List(ctx context.Context, ownerID string) ([]models.Note, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(ownerID)+"/notes", nil)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	// Accept both {"notes":[...]} and a bare array.
	raw := body

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		raw = []byte(parsed.Get("notes").Raw)
		if len(raw) == 0 {
			return []models.Note{}, nil
		}
	}

	var notes []models.Note
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, fmt.Errorf("decoding note listing: %w", err)
	}

	if notes == nil {
		notes = []models.Note{}
	}

	return notes, nil
}

// Create stores a new note and returns the stored version.
func (c *Client) Create(ctx context.Context, note models.Note) (models.Note, error) {
	body, err := c.do(ctx, http.MethodPost, "/v1/notes", note)
	if err != nil {
		return models.Note{}, fmt.Errorf("creating note %s: %w", note.ID, err)
	}

	return decodeNote(body, note)
}

// Update replaces an existing note and returns the stored version.
func (c *Client) Update(ctx context.Context, note models.Note) (models.Note, error) {
	body, err := c.do(ctx, http.MethodPut, "/v1/notes/"+url.PathEscape(note.ID), note)
	if err != nil {
		return models.Note{}, fmt.Errorf("updating note %s: %w", note.ID, err)
	}

	return decodeNote(body, note)
}

// Delete removes a note. A missing note is reported as errs.ErrNoteNotFound.
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/v1/notes/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}

	return nil
}

// Ping checks that the service is reachable. Used by the network monitor.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/v1/health", nil)
	return err
}

// decodeNote reads a single note from body. Servers that answer with an
// empty body get the sent note echoed back.
func decodeNote(body []byte, sent models.Note) (models.Note, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return sent, nil
	}

	var n models.Note
	if err := json.Unmarshal(body, &n); err != nil {
		return models.Note{}, fmt.Errorf("decoding note: %w", err)
	}

	if n.ID == "" {
		return sent, nil
	}

	return n, nil
}

// do sends a request with an optional JSON body and returns the response
// body for 2xx statuses. Errors are classified into TransientError,
// RejectionError, or errs.ErrNoteNotFound.
func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &TransientError{Err: fmt.Errorf("sending request to %s: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("reading response from %s: %w", endpoint, err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	msg := errorMessage(respBody)

	switch {
	case isTransientStatus(resp.StatusCode):
		return nil, &TransientError{Err: fmt.Errorf("API %s returned status %d: %s", endpoint, resp.StatusCode, msg)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("API %s: %w", endpoint, errs.ErrNoteNotFound)
	default:
		return nil, &RejectionError{Endpoint: endpoint, Status: resp.StatusCode, Message: msg}
	}
}

// errorMessage pulls a human readable message out of an error body,
// preferring the "error" then "message" JSON fields.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error", "message", "error.message"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
				return sanitizeResponseBody([]byte(r.Str))
			}
		}
	}

	return sanitizeResponseBody(body)
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary problem worth retrying: request timeout, rate limiting, and
// any server-side 5xx.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}

	return code >= http.StatusInternalServerError
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Replaces non-printable characters to
// prevent log injection.
func sanitizeResponseBody(body []byte) string {
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
