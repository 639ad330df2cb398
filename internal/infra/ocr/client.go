// Package ocr provides the text extraction adapter. It calls an external
// OCR recognition API and returns the raw recognized text; all parsing of
// that text happens in the service layer.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kvasquez/receiptguard/internal/domain"
	"github.com/kvasquez/receiptguard/internal/infra/observability"
	"github.com/kvasquez/receiptguard/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ocr")

// Client calls the OCR recognition service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewClient creates a new OCR client. An empty baseURL yields a client whose
// Extract always fails with ErrExtractionUnavailable, so orders simply stay
// pending instead of the whole service refusing to start.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

type recognizeRequest struct {
	ImageURL string `json:"image_url"`
	Language string `json:"language,omitempty"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// Extract runs OCR on the referenced image and returns the raw text.
func (c *Client) Extract(ctx context.Context, imageRef string) (string, error) {
	ctx, span := tracer.Start(ctx, "OCRClient.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("image.ref", imageRef))

	if c.baseURL == "" {
		return "", &domain.ErrExtractionUnavailable{Reason: "OCR_API_URL not configured"}
	}

	var recognized recognizeResponse

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(recognizeRequest{ImageURL: imageRef, Language: "spa"})
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/recognize", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("ocr API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&recognized)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return recognized.Text, nil
	})

	if err != nil {
		// Timeouts, transport failures, and non-200s all land here. The
		// caller treats them the same: no verdict is written.
		c.metrics.IncrExternalError("ocr")
		return "", &domain.ErrExtractionFailed{ImageRef: imageRef, Err: err}
	}

	return recognized.Text, nil
}
