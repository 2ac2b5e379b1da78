package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{20,}$`)

// ErrClassifierConfig is returned by Validate when the classifier cannot be called.
var ErrClassifierConfig = errors.New("classifier configuration invalid")

// ClassifierConfig configures the vision classifier client.
type ClassifierConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	MinConfidence float64
}

func LoadClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		APIKey:        strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
		Model:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		Timeout:       getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
		MinConfidence: getEnvAsFloat("CLASSIFIER_MIN_CONFIDENCE", 0.3),
	}
}

// Validate checks that the configuration is present and well formed.
func (c *ClassifierConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key is not set", ErrClassifierConfig)
	}
	if !apiKeyPattern.MatchString(c.APIKey) {
		return fmt.Errorf("%w: api key is malformed", ErrClassifierConfig)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is not set", ErrClassifierConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q is not absolute", ErrClassifierConfig, c.BaseURL)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence must be within [0,1]", ErrClassifierConfig)
	}
	return nil
}
