package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client represents a marketplace backend API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// APIError is returned when the backend answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Message)
}

// New creates a new marketplace API client
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a client around an existing http.Client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	log.Info().
		Str("base_url", baseURL).
		Dur("timeout", httpClient.Timeout).
		Msg("Initializing marketplace API client")

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Get issues an authorized GET against the backend
func (c *Client) Get(ctx context.Context, token, endpoint string) ([]byte, error) {
	return c.request(ctx, http.MethodGet, token, endpoint, nil)
}

// Post issues an authorized POST with a JSON body against the backend
func (c *Client) Post(ctx context.Context, token, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.request(ctx, http.MethodPost, token, endpoint, body)
}

// request is the internal method that makes an HTTP request
func (c *Client) request(ctx context.Context, method, token, endpoint string, body io.Reader) ([]byte, error) {
	requestID := uuid.NewString()
	startTime := time.Now()

	url := c.baseURL + endpoint

	log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", url).
		Msg("Preparing API request")

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		log.Error().
			Str("request_id", requestID).
			Err(err).
			Str("url", url).
			Msg("Error creating request")
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	execStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().
			Str("request_id", requestID).
			Err(err).
			Str("url", url).
			Dur("exec_duration", time.Since(execStart)).
			Msg("Error executing request")
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	readStart := time.Now()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().
			Str("request_id", requestID).
			Err(err).
			Str("url", url).
			Int("status_code", resp.StatusCode).
			Msg("Error reading response body")
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		log.Warn().
			Str("request_id", requestID).
			Err(apiErr).
			Str("url", url).
			Int("status_code", resp.StatusCode).
			Int("response_size", len(respBody)).
			Dur("total_duration", time.Since(startTime)).
			Msg("API returned error response")
		return nil, apiErr
	}

	log.Debug().
		Str("request_id", requestID).
		Str("url", url).
		Int("status_code", resp.StatusCode).
		Int("response_size", len(respBody)).
		Dur("exec_duration", readStart.Sub(execStart)).
		Dur("read_duration", time.Since(readStart)).
		Dur("total_duration", time.Since(startTime)).
		Msg("API request completed successfully")

	return respBody, nil
}

// parseAPIError extracts error information from the API response
func parseAPIError(statusCode int, respBody []byte) error {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if err := json.Unmarshal(respBody, &errResp); err == nil {
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		return &APIError{StatusCode: statusCode, Message: msg}
	}

	return &APIError{StatusCode: statusCode}
}
