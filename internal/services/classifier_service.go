package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ecovend/backend/internal/config"
	"github.com/ecovend/backend/internal/metrics"
	"github.com/ecovend/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

var (
	ErrClassifierNotConfigured = errors.New("classifier not configured")
	ErrClassifierTransport     = errors.New("classifier request failed")
	ErrClassificationUnusable  = errors.New("classification unusable")
)

// ClassificationError reports why an image could not be classified. Kind is
// one of the ErrClassifier* sentinels and matches with errors.Is.
type ClassificationError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *ClassificationError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClassificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unusable(format string, args ...any) *ClassificationError {
	return &ClassificationError{Kind: ErrClassificationUnusable, Detail: fmt.Sprintf(format, args...)}
}

// Classification is the classifier's verdict on one scanned item.
type Classification struct {
	ItemName           string                  `json:"itemName" validate:"required"`
	Category           models.MaterialCategory `json:"category" validate:"required"`
	Confidence         float64                 `json:"confidence" validate:"gte=0,lte=1"`
	EstimatedValue     int64                   `json:"estimatedValue" validate:"gt=0"`
	RecyclabilityScore int64                   `json:"recyclabilityScore" validate:"gte=0,lte=100"`
}

const classificationPrompt = "Identify this object for recycling. Determine its name, category " +
	"(PLASTIC, GLASS, METAL, PAPER, ELECTRONICS, or UNKNOWN), confidence score (0-1), and estimated " +
	"token/coin value (1-50) based on size and material. Also provide a recyclability score (0-100). " +
	"Respond strictly in JSON format."

var classificationFields = []string{"itemName", "category", "confidence", "estimatedValue", "recyclabilityScore"}

// largest integer a JSON number carries exactly
const maxExactInt = 1 << 53

var classificationSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"itemName":           map[string]string{"type": "STRING"},
		"category":           map[string]string{"type": "STRING"},
		"confidence":         map[string]string{"type": "NUMBER"},
		"estimatedValue":     map[string]string{"type": "INTEGER"},
		"recyclabilityScore": map[string]string{"type": "INTEGER"},
	},
	"required": classificationFields,
}

// ClassifierService identifies recyclable items in photos through the
// Gemini generateContent API.
type ClassifierService struct {
	config    *config.ClassifierConfig
	client    *resty.Client
	validator *validator.Validate
	log       zerolog.Logger
}

func NewClassifierService(cfg *config.ClassifierConfig, log zerolog.Logger) *ClassifierService {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &ClassifierService{
		config:    cfg,
		client:    client,
		validator: validator.New(),
		log:       log,
	}
}

// Configured reports whether Classify can reach the classifier at all.
func (s *ClassifierService) Configured() error {
	if err := s.config.Validate(); err != nil {
		return &ClassificationError{Kind: ErrClassifierNotConfigured, Err: err}
	}
	return nil
}

// Classify sends one JPEG image to the classifier. There are no retries.
func (s *ClassifierService) Classify(ctx context.Context, imageJPEG []byte) (Classification, error) {
	start := time.Now()
	result, err := s.classify(ctx, imageJPEG)

	outcome := "success"
	var classErr *ClassificationError
	if errors.As(err, &classErr) {
		switch classErr.Kind {
		case ErrClassifierNotConfigured:
			outcome = "not_configured"
		case ErrClassifierTransport:
			outcome = "transport_error"
		default:
			outcome = "unusable"
		}
		s.log.Warn().Err(err).Str("outcome", outcome).Msg("Classification failed")
	} else {
		s.log.Info().
			Str("item", result.ItemName).
			Str("category", string(result.Category)).
			Float64("confidence", result.Confidence).
			Int64("value", result.EstimatedValue).
			Msg("Item classified")
	}
	metrics.RecordClassification(outcome, time.Since(start))

	return result, err
}

func (s *ClassifierService) classify(ctx context.Context, imageJPEG []byte) (Classification, error) {
	if err := s.Configured(); err != nil {
		return Classification{}, err
	}
	if len(imageJPEG) == 0 {
		return Classification{}, unusable("empty image")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	body := map[string]any{
		"contents": []any{map[string]any{
			"parts": []any{
				map[string]any{"inlineData": map[string]string{
					"mimeType": "image/jpeg",
					"data":     base64.StdEncoding.EncodeToString(imageJPEG),
				}},
				map[string]any{"text": classificationPrompt},
			},
		}},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   classificationSchema,
		},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", s.config.APIKey).
		SetPathParam("model", s.config.Model).
		SetBody(body).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return Classification{}, &ClassificationError{Kind: ErrClassifierTransport, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return Classification{}, &ClassificationError{
			Kind:   ErrClassifierTransport,
			Detail: fmt.Sprintf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 200)),
		}
	}

	return s.parse(resp.Body())
}

func (s *ClassifierService) parse(body []byte) (Classification, error) {
	if !gjson.ValidBytes(body) {
		return Classification{}, unusable("response is not JSON")
	}
	if reason := gjson.GetBytes(body, "promptFeedback.blockReason"); reason.Exists() {
		return Classification{}, unusable("prompt blocked: %s", reason.String())
	}

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if !text.Exists() || text.String() == "" {
		return Classification{}, unusable("empty response")
	}

	payload := text.String()
	if !gjson.Valid(payload) {
		return Classification{}, unusable("response text is not JSON")
	}

	fields := gjson.GetMany(payload, classificationFields...)
	for i, field := range fields {
		if !field.Exists() || field.Type == gjson.Null {
			return Classification{}, unusable("missing field %s", classificationFields[i])
		}
	}
	if fields[0].Type != gjson.String || fields[1].Type != gjson.String {
		return Classification{}, unusable("itemName and category must be strings")
	}
	for _, field := range fields[2:] {
		if field.Type != gjson.Number {
			return Classification{}, unusable("numeric field has type %s", field.Type)
		}
	}
	for i, field := range fields[3:] {
		if field.Num != math.Trunc(field.Num) || math.Abs(field.Num) > maxExactInt {
			return Classification{}, unusable("%s must be an integer, got %s", classificationFields[3+i], field.Raw)
		}
	}

	result := Classification{
		ItemName:           strings.TrimSpace(fields[0].String()),
		Category:           models.ParseMaterialCategory(fields[1].String()),
		Confidence:         fields[2].Float(),
		EstimatedValue:     fields[3].Int(),
		RecyclabilityScore: fields[4].Int(),
	}

	if err := s.validator.Struct(&result); err != nil {
		return Classification{}, &ClassificationError{Kind: ErrClassificationUnusable, Err: err}
	}
	if result.Confidence < s.config.MinConfidence {
		return Classification{}, unusable("confidence %.2f below %.2f", result.Confidence, s.config.MinConfidence)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
