// Package classifier adapts the opaque image classifier: it invokes the
// scorer once per complaint and normalizes its output into an assessment
// with a detected type, a confidence and a model name.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"civiceye/models"

	retry "github.com/avast/retry-go"
)

// FailureKind distinguishes the ways classification can fail.
type FailureKind string

const (
	// ImageUnavailable means the referenced image blob is missing.
	ImageUnavailable FailureKind = "image_unavailable"
	// ModelUnavailable means the scorer was unreachable or timed out.
	ModelUnavailable FailureKind = "model_unavailable"
	// LowConfidenceUnknown means the scorer ran but stayed below the
	// confidence floor; the detected type is forced to unknown.
	LowConfidenceUnknown FailureKind = "low_confidence_unknown"
)

// Failure is a classification failure of a specific kind.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("classification failed (%s): %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("classification failed (%s)", f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// FailureOf returns the failure kind of err, or "" when err is not a
// classification failure.
func FailureOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Scorer yields a normalized assessment for an image reference.
// Implementations must be concurrency-safe.
//
// On LowConfidenceUnknown the degraded assessment is returned alongside the
// failure so the caller can still attach it. On every other failure the
// assessment is nil and nothing is attached.
type Scorer interface {
	Score(ctx context.Context, imagePath string) (*models.AIAssessment, error)
	ModelName() string
}

// scoreRequest is the payload sent to the detector service.
type scoreRequest struct {
	ImagePath string `json:"image_path"`
}

// scoreResponse is the detector service's raw answer.
type scoreResponse struct {
	DetectedType string  `json:"detected_type"`
	Confidence   float64 `json:"confidence"`
	ModelName    string  `json:"model_name"`
}

// HTTPScorer calls an out-of-process detector service over HTTP.
type HTTPScorer struct {
	baseURL         string
	confidenceFloor float64
	httpClient      *http.Client
}

// NewHTTPScorer creates a scorer against a detector service base URL. A
// scorer timeout maps to ModelUnavailable rather than blocking.
func NewHTTPScorer(baseURL string, timeout time.Duration, confidenceFloor float64) *HTTPScorer {
	return &HTTPScorer{
		baseURL:         baseURL,
		confidenceFloor: confidenceFloor,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *HTTPScorer) ModelName() string { return "detector-http" }

// Score posts the image reference to the detector service and normalizes the
// answer. The call is retried at most once before the scorer is declared
// unavailable.
func (s *HTTPScorer) Score(ctx context.Context, imagePath string) (*models.AIAssessment, error) {
	var raw scoreResponse
	err := retry.Do(
		func() error { return s.scoreOnce(ctx, imagePath, &raw) },
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Only the unreachable-scorer case is worth one retry.
			return FailureOf(err) == ModelUnavailable
		}),
	)
	if err != nil {
		return nil, err
	}

	return normalize(raw, s.confidenceFloor)
}

func (s *HTTPScorer) scoreOnce(ctx context.Context, imagePath string, out *scoreResponse) error {
	body, err := json.Marshal(scoreRequest{ImagePath: imagePath})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/classify", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &Failure{Kind: ModelUnavailable, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Failure{Kind: ImageUnavailable, Err: fmt.Errorf("detector returned %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return &Failure{Kind: ModelUnavailable, Err: fmt.Errorf("detector returned %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Failure{Kind: ModelUnavailable, Err: fmt.Errorf("failed to decode detector response: %w", err)}
	}
	return nil
}

// normalize maps a raw scorer answer into an assessment, clamping the type
// to the category enum and applying the confidence floor.
func normalize(raw scoreResponse, floor float64) (*models.AIAssessment, error) {
	detected := models.Category(raw.DetectedType)
	if !models.ValidCategory(detected) {
		detected = models.CategoryUnknown
	}

	assessment := &models.AIAssessment{
		DetectedType: detected,
		Confidence:   clamp01(raw.Confidence),
		ModelName:    raw.ModelName,
		AssessedAt:   time.Now().UTC(),
	}

	if assessment.Confidence < floor {
		assessment.DetectedType = models.CategoryUnknown
		return assessment, &Failure{
			Kind: LowConfidenceUnknown,
			Err:  fmt.Errorf("confidence %.3f below floor %.3f", assessment.Confidence, floor),
		}
	}
	return assessment, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
