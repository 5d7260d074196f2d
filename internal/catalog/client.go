// Package catalog fetches product records from the storefront's REST backend.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/zapit-cart/internal/domain"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrUnavailable covers transport failures, bad answers and an open breaker.
	ErrUnavailable = errors.New("product catalog unavailable")
)

type Settings struct {
	RequestTimeout   time.Duration
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // how long the breaker stays open
	HalfOpenRequests uint32
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[domain.Product]
}

type productEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    domain.Product `json:"data"`
}

func NewClient(baseURL string, s Settings) *Client {
	st := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		// an unknown product is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: s.RequestTimeout},
		breaker:    gobreaker.NewCircuitBreaker[domain.Product](st),
	}
}

// GetProduct returns the catalog record for id. While the catalog is failing
// the breaker short-circuits with gobreaker.ErrOpenState, wrapped in
// ErrUnavailable like every other failure to get an answer.
func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := c.breaker.Execute(func() (domain.Product, error) {
		return c.fetch(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Product{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return p, err
}

func (c *Client) fetch(ctx context.Context, id string) (domain.Product, error) {
	endpoint := fmt.Sprintf("%s/api/products/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build catalog request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, ErrProductNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// the catalog cannot resolve this id; not an outage
		return domain.Product{}, fmt.Errorf("%w: catalog rejected %s with status %d", ErrProductNotFound, id, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.Product{}, fmt.Errorf("%w: catalog returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var env productEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.Product{}, fmt.Errorf("%w: decode catalog response failed: %w", ErrUnavailable, err)
	}
	if !env.Success || env.Data.ID == "" {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}

	return env.Data, nil
}
