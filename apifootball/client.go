package apifootball

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL is the default API base URL
	DefaultBaseURL = "https://v3.football.api-sports.io"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// CallCounter tracks issued upstream requests for quota accounting.
// Every request the client sends results in exactly one Increment call.
type CallCounter interface {
	Increment()
}

// Client represents an API-Football client
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	counter    CallCounter
}

// Config holds the configuration for the API client
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Counter  CallCounter
}

// NewClient creates a new API-Football client
func NewClient(apiToken string, counter CallCounter) *Client {
	return NewClientWithConfig(Config{
		BaseURL:  DefaultBaseURL,
		APIToken: apiToken,
		Timeout:  DefaultTimeout,
		Counter:  counter,
	})
}

// NewClientWithConfig creates a new client with custom configuration
func NewClientWithConfig(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  config.BaseURL,
		apiToken: config.APIToken,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		counter: config.Counter,
	}
}

// get performs a GET request against an API endpoint
func (c *Client) get(endpoint string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-apisports-key", c.apiToken)
	req.Header.Set("Accept", "application/json")

	if c.counter != nil {
		c.counter.Increment()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Code:    resp.StatusCode,
			Message: string(body),
		}
	}

	return body, nil
}

// fetch performs a GET request and unmarshals the standard envelope.
// API-Football reports endpoint-level problems in the "errors" object
// with a 200 status, so the envelope has to be inspected too.
func (c *Client) fetch(endpoint string, params url.Values, out interface{}) error {
	body, err := c.get(endpoint, params)
	if err != nil {
		return err
	}

	var envelope struct {
		Errors   json.RawMessage `json:"errors"`
		Results  int             `json:"results"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	if apiErr := parseEnvelopeErrors(envelope.Errors); apiErr != nil {
		return apiErr
	}

	if len(envelope.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// parseEnvelopeErrors extracts an APIError from the envelope "errors" field.
// The field is either an empty array or an object of code -> message.
func parseEnvelopeErrors(raw json.RawMessage) *APIError {
	if len(raw) == 0 {
		return nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err != nil || len(asMap) == 0 {
		return nil
	}
	for key, msg := range asMap {
		return &APIError{Code: 0, Message: fmt.Sprintf("%s: %s", key, msg)}
	}
	return nil
}

// APIError represents an API error response
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// SeasonForDate returns the API-Football season for a calendar date.
// European seasons roll over in July: 2024-08-10 belongs to season 2024,
// 2025-03-01 still belongs to season 2024.
func SeasonForDate(date time.Time) int {
	if date.Month() >= time.July {
		return date.Year()
	}
	return date.Year() - 1
}
