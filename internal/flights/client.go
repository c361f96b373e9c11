package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/observability"
	"golang.org/x/sync/semaphore"
)

// FlightDto is the inventory collaborator's view of a flight. Read-only
// here; this service never stores it.
type FlightDto struct {
	ID             string    `json:"id"`
	Airline        string    `json:"airline"`
	FromPlace      string    `json:"fromPlace"`
	ToPlace        string    `json:"toPlace"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	Price          float64   `json:"price"`
	AvailableSeats int       `json:"availableSeats"`
}

// Inventory is the surface the sagas need from the flight service.
type Inventory interface {
	Fetch(ctx context.Context, flightID, token string) (*FlightDto, error)
	Reserve(ctx context.Context, flightID string, seatCount int, token string) error
	Release(ctx context.Context, flightID string, seatCount int, token string) error
}

// Client talks HTTP to the flight inventory service. Calls are slow remote
// I/O, so a weighted semaphore keeps the number in flight bounded instead
// of letting a burst of sagas starve the server's connection pool.
type Client struct {
	baseURL string
	http    *http.Client
	sem     *semaphore.Weighted
}

func NewClient(baseURL string, maxInFlight int64) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		sem:     semaphore.NewWeighted(maxInFlight),
	}
}

func (c *Client) Fetch(ctx context.Context, flightID, token string) (*FlightDto, error) {
	var dto FlightDto
	url := fmt.Sprintf("%s/api/flight/%s", c.baseURL, flightID)
	if err := c.do(ctx, http.MethodGet, url, token, "fetch", &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

func (c *Client) Reserve(ctx context.Context, flightID string, seatCount int, token string) error {
	url := fmt.Sprintf("%s/api/flight/internal/%s/reserve/%d", c.baseURL, flightID, seatCount)
	return c.do(ctx, http.MethodPut, url, token, "reserve", nil)
}

func (c *Client) Release(ctx context.Context, flightID string, seatCount int, token string) error {
	url := fmt.Sprintf("%s/api/flight/internal/%s/release/%d", c.baseURL, flightID, seatCount)
	return c.do(ctx, http.MethodPut, url, token, "release", nil)
}

func (c *Client) do(ctx context.Context, method, url, token, op string, out interface{}) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	start := time.Now()
	defer func() {
		observability.InventoryCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", bearer(token))

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(domain.ErrExternalService, "%s %s: %v", op, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(domain.ErrNotFound, "flight service returned 404 for %s", url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(domain.ErrExternalService, "%s %s: status %d: %s", op, url, resp.StatusCode, body)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(domain.ErrExternalService, "decode %s response: %v", op, err)
		}
	}
	return nil
}

func bearer(token string) string {
	if token == "" {
		return ""
	}
	if len(token) > 7 && token[:7] == "Bearer " {
		return token
	}
	return "Bearer " + token
}
