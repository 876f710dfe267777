// Package provider builds the OpenAI-compatible client shared by the embedding and
// completion components, and classifies its failures.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hyperjump/reportqa/internal/errs"
	openai "github.com/sashabaranov/go-openai"
)

// Config is the subset of provider settings needed to build a client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient returns an OpenAI client. An empty API key is a configuration error.
func NewClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.KindConfiguration, "provider.new_client", "missing API key")
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(c), nil
}

// Retryable reports whether a provider call failed transiently: a timeout,
// rate limiting, or a server-side error.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Wrap classifies a provider failure under kind, marking it retryable when transient.
func Wrap(kind errs.Kind, op string, err error) error {
	return errs.Provider(kind, op, err, Retryable(err))
}
