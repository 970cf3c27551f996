// Package client is a small HTTP client for the barberbook REST API, used by
// front-ends and barberctl when they run away from the database.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/service"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyHeader = "x-api-key"

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("http %d: %s (%s: %s)", e.Status, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps API error codes back onto the domain sentinels, so callers can
// use errors.Is the same way they would against the services.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "validation_error":
		return &service.ValidationError{Field: e.Field, Message: e.Message}
	case "slot_unavailable":
		return domain.ErrSlotUnavailable
	case "concurrent_modification":
		return domain.ErrConcurrentModification
	case "invalid_transition":
		return service.ErrInvalidTransition
	case "rate_limited":
		return service.ErrRateLimited
	}
	if e.Status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL    string
	apiKey     string
	keyHeader  string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client for baseURL. An empty apiKey sends no key header.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		keyHeader:  DefaultKeyHeader,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithKeyHeader overrides the header the key is sent in.
func (c *Client) WithKeyHeader(header string) *Client {
	if header != "" {
		c.keyHeader = header
	}
	return c
}

// UseRedisCache enables caching of catalog lookups. Availability is never
// cached client-side since the server already invalidates its own cache on
// every booking.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	endpoint := c.endpoint("/api/v1/services", url.Values{"business_id": {businessID}})
	cacheKey := "client:services:" + businessID
	var wrap struct {
		Services []*models.Service `json:"services"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Services, nil
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Services, nil
}

func (c *Client) ListProfessionals(ctx context.Context, businessID, serviceID string) ([]*models.Professional, error) {
	endpoint := c.endpoint("/api/v1/professionals", url.Values{"business_id": {businessID}, "service_id": {serviceID}})
	cacheKey := fmt.Sprintf("client:professionals:%s:%s", businessID, serviceID)
	var wrap struct {
		Professionals []*models.Professional `json:"professionals"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Professionals, nil
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Professionals, nil
}

func (c *Client) GetAvailability(ctx context.Context, req service.AvailabilityRequest) ([]string, error) {
	endpoint := c.endpoint("/api/v1/availability", url.Values{
		"business_id":     {req.BusinessID},
		"professional_id": {req.ProfessionalID},
		"service_id":      {req.ServiceID},
		"date":            {req.Date},
	})
	var resp struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

func (c *Client) SubmitBooking(ctx context.Context, req service.BookingRequest) (*models.Appointment, error) {
	var appt models.Appointment
	if err := c.doPost(ctx, c.endpoint("/api/v1/appointments", nil), req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// Cancel cancels an appointment; version 0 means the current one.
func (c *Client) Cancel(ctx context.Context, businessID, id string, version int64) (*models.Appointment, error) {
	body := map[string]any{"business_id": businessID, "version": version}
	var appt models.Appointment
	if err := c.doPost(ctx, c.endpoint("/api/v1/appointments/"+url.PathEscape(id)+"/cancel", nil), body, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	if len(q) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
