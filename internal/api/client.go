package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/studywise/studywise-go/internal/model"
	"github.com/studywise/studywise-go/internal/response"
)

// TokenSource supplies the bearer credential for authorized calls. It is
// read-only from the client's perspective; an external auth store owns it.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource holding a fixed credential.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client talks to the StudyWise REST backend. All responses are wrapped in
// the standard envelope; errors are surfaced as *Error with the envelope's
// code and message.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger attaches a logger; requests are traced at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "api_client").Logger() }
}

// NewClient creates a Client against baseURL (e.g. "https://api.studywise.app/api/v1").
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a bearer token. It is the only call made
// without an Authorization header.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/student/login",
		model.LoginRequest{Email: email, Password: password}, &out, http.StatusOK, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExamWindow fetches the schedule window for one exam.
func (c *Client) ExamWindow(ctx context.Context, examID string) (*model.ExamWindow, error) {
	var out model.ExamWindow
	path := "/student/exams/" + url.PathEscape(examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExamPaper fetches the ordered question set for one exam.
func (c *Client) ExamPaper(ctx context.Context, examID string) (*model.ExamPaper, error) {
	var out model.ExamPaper
	path := "/student/exams/" + url.PathEscape(examID) + "/paper"
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitExam posts a completed answer set for grading. The backend responds
// 201 with the graded totals.
func (c *Client) SubmitExam(ctx context.Context, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	var out model.SubmissionResult
	if err := c.do(ctx, http.MethodPost, "/student/submissions", req, &out, http.StatusCreated, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportViolation delivers one advisory integrity event. Best-effort: callers
// are expected to log and drop the error rather than fail the session.
func (c *Client) ReportViolation(ctx context.Context, examID string, v model.Violation) error {
	path := "/student/exams/" + url.PathEscape(examID) + "/violations"
	return c.do(ctx, http.MethodPost, path, v, nil, http.StatusNoContent, true)
}

// do performs one request/response cycle against the envelope contract.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, wantStatus int, authed bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(response.HeaderRequestID, uuid.New().String())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	// 204 responses carry no envelope.
	if wantStatus == http.StatusNoContent && resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env response.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: status %d: decode envelope: %w", method, path, resp.StatusCode, err)
	}

	if resp.StatusCode != wantStatus {
		return newError(resp.StatusCode, env.Error)
	}
	if env.Error != nil {
		return newError(resp.StatusCode, env.Error)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}
