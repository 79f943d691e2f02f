// Package forecast talks to the external expense forecasting service.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrForecastTimeout is returned when the service does not answer in time.
	ErrForecastTimeout = errors.New("forecast service timed out")
	// ErrForecastUnavailable is returned for transport failures and non-2xx responses.
	ErrForecastUnavailable = errors.New("forecast service unavailable")
)

// maxResponseBytes bounds how much of the upstream body is read.
const maxResponseBytes = 1 << 20

// Expense is one data point sent for forecasting.
type Expense struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Amount float64 `json:"amount"`
}

type request struct {
	Expenses []Expense `json:"expenses"`
}

// Client posts expense histories to the forecasting service.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for url with an overall per-call timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict sends the expenses and returns the service's JSON response as is.
func (c *Client) Predict(ctx context.Context, expenses []Expense) (json.RawMessage, error) {
	body, err := json.Marshal(request{Expenses: expenses})
	if err != nil {
		return nil, fmt.Errorf("failed to encode forecast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrForecastTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrForecastTimeout, err)
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrForecastUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrForecastUnavailable, resp.StatusCode)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrForecastUnavailable)
	}

	return json.RawMessage(data), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
