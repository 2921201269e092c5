package core

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents an invalid configuration value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s=%s: %s", e.Field, e.Value, e.Message)
}

// Validate checks the values the brew and scrape commands depend on.
func (c Config) Validate() error {
	if err := validateURL("kettle.url", c.Kettle.URL); err != nil {
		return err
	}
	if c.Kettle.Timeout <= 0 {
		return ValidationError{Field: "kettle.timeout", Value: c.Kettle.Timeout.String(), Message: "timeout must be positive"}
	}
	if err := nonNegative("brew.fallback_delay", c.Brew.FallbackDelay); err != nil {
		return err
	}
	if err := nonNegative("brew.background_delay", c.Brew.BackgroundDelay); err != nil {
		return err
	}
	if c.Scrape.Top <= 0 {
		return ValidationError{Field: "scrape.top", Value: fmt.Sprintf("%d", c.Scrape.Top), Message: "top must be at least 1"}
	}
	if c.Scrape.Concurrency <= 0 || c.Scrape.Concurrency > 64 {
		return ValidationError{Field: "scrape.concurrency", Value: fmt.Sprintf("%d", c.Scrape.Concurrency), Message: "concurrency must be between 1 and 64"}
	}
	if c.Scrape.RequestsPerSecond < 0 {
		return ValidationError{Field: "scrape.requests_per_second", Value: fmt.Sprintf("%g", c.Scrape.RequestsPerSecond), Message: "rate must not be negative"}
	}
	for _, u := range c.Scrape.URLs {
		if err := validateURL("scrape.urls", u); err != nil {
			return err
		}
	}
	return nil
}

func nonNegative(field string, d time.Duration) error {
	if d < 0 {
		return ValidationError{Field: field, Value: d.String(), Message: "duration must not be negative"}
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: field, Value: raw, Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: field, Value: raw, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return ValidationError{Field: field, Value: raw, Message: "host is required"}
	}
	return nil
}
