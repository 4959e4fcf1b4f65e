package assessmenthttp

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

	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/logging"
	"github.com/go-logr/logr"
)

const maxResponseBytes = 1 << 20

const (
	DefaultStartPath  = "start-quiz"
	DefaultNextPath   = "next-question"
	DefaultSubmitPath = "submit-answer"
)

var ErrUnauthorized = errors.New("assessment service rejected credentials")

type API struct {
	BaseURL    string
	StartPath  string
	NextPath   string
	SubmitPath string
}

func DefaultAPI(baseURL string) API {
	return API{
		BaseURL:    baseURL,
		StartPath:  DefaultStartPath,
		NextPath:   DefaultNextPath,
		SubmitPath: DefaultSubmitPath,
	}
}

// TokenSource returns the bearer token to send for identity. An empty token
// sends no Authorization header.
type TokenSource func(ctx context.Context, identity domain.Identity) (string, error)

// Client talks to the assessment service over JSON/HTTP.
type Client struct {
	API            API
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Tokens         TokenSource
	Logger         logr.Logger
}

func New(api API, logger logr.Logger) Client {
	return Client{
		API:    api,
		Logger: logger.WithName("assessment-client"),
	}
}

// StatusError is a non-2xx reply. Detail carries the service's error message
// when it sent one.
type StatusError struct {
	Operation string
	Code      int
	Detail    string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Code, e.Detail)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

type startRequest struct {
	UserID string `json:"user_id"`
}

type submitRequest struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

func (c Client) StartSession(ctx context.Context, identity domain.Identity) error {
	if identity.IsZero() {
		return errors.New("start session: identity is required")
	}

	endpoint, err := buildAPIURL(c.API.BaseURL, c.API.StartPath, nil)
	if err != nil {
		return err
	}

	return c.do(ctx, "start session", http.MethodPost, endpoint, identity, startRequest{UserID: string(identity)}, nil)
}

func (c Client) NextItem(ctx context.Context, identity domain.Identity) (domain.NextItemResult, error) {
	if identity.IsZero() {
		return domain.NextItemResult{}, errors.New("next item: identity is required")
	}

	endpoint, err := buildAPIURL(c.API.BaseURL, c.API.NextPath, url.Values{"user_id": {string(identity)}})
	if err != nil {
		return domain.NextItemResult{}, err
	}

	var payload nextItemResponse
	if err := c.do(ctx, "next item", http.MethodGet, endpoint, identity, nil, &payload); err != nil {
		return domain.NextItemResult{}, err
	}

	return payload.result(), nil
}

func (c Client) SubmitAnswer(ctx context.Context, answer domain.Answer) (domain.SubmitResult, error) {
	if answer.Identity.IsZero() || answer.ItemID == "" || answer.Option == "" {
		return domain.SubmitResult{}, errors.New("submit answer: identity, item and option are required")
	}

	endpoint, err := buildAPIURL(c.API.BaseURL, c.API.SubmitPath, nil)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	body := submitRequest{
		UserID:     string(answer.Identity),
		QuestionID: answer.ItemID,
		Answer:     answer.Option,
	}
	var payload submitResponse
	if err := c.do(ctx, "submit answer", http.MethodPost, endpoint, answer.Identity, body, &payload); err != nil {
		return domain.SubmitResult{}, err
	}

	return payload.result(), nil
}

func (c Client) do(ctx context.Context, operation string, method string, endpoint string, identity domain.Identity, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.Tokens != nil {
		token, err := c.Tokens(ctx, identity)
		if err != nil {
			return fmt.Errorf("%s: load api token: %w", operation, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.Logger.V(logging.DEBUG).Info("Assessment request completed.",
		"operation", operation,
		"status", resp.StatusCode,
		"elapsed", time.Since(started).String())

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Operation: operation, Code: resp.StatusCode, Detail: decodeDetail(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// decodeDetail extracts FastAPI-style {"detail": ...} bodies. Validation
// errors carry a list there, which is returned as compact JSON.
func decodeDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxResponseBytes))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}

	if len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil {
			return detail
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, payload.Detail); err == nil {
			return compact.String()
		}
	}
	return payload.Message
}

func buildAPIURL(baseURL string, path string, query url.Values) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint := parsed.JoinPath(strings.TrimPrefix(path, "/"))
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
