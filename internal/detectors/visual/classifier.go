// Package visual holds the media detectors used by the safety scanner:
// the NSFW/gore classifier client, perceptual hashing and OCR.
package visual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Scores are classifier confidences in [0,1].
type Scores struct {
	NSFW float64 `json:"nsfw"`
	Gore float64 `json:"gore"`
}

// Classifier scores media bytes. Implementations are external oracles.
type Classifier interface {
	Score(ctx context.Context, data []byte, mime string) (Scores, error)
}

// OCR extracts embedded text from media bytes.
type OCR interface {
	Extract(ctx context.Context, data []byte, mime string) (string, error)
}

// maxResponseBytes bounds oracle response bodies.
const maxResponseBytes = 1 << 20

// HTTPClassifier posts media as a multipart form to a scoring endpoint that
// answers {"nsfw": float, "gore": float}.
type HTTPClassifier struct {
	Client   *http.Client
	Endpoint string
	APIToken string
}

// NewHTTPClassifier returns a classifier for endpoint using client.
func NewHTTPClassifier(client *http.Client, endpoint, token string) *HTTPClassifier {
	return &HTTPClassifier{Client: client, Endpoint: endpoint, APIToken: token}
}

func (c *HTTPClassifier) Score(ctx context.Context, data []byte, mime string) (Scores, error) {
	slog.Debug("sending media to classifier", "mimetype", mime, "size", len(data))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("media", "upload")
	if err != nil {
		return Scores{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Scores{}, err
	}
	if err := writer.Close(); err != nil {
		return Scores{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return Scores{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Token "+c.APIToken)
	}

	start := time.Now()
	defer func() {
		oracleDuration.WithLabelValues("classifier").Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		return Scores{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer res.Body.Close()

	oracleCount.WithLabelValues("classifier", fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != http.StatusOK {
		return Scores{}, fmt.Errorf("classifier request failed statusCode=%d", res.StatusCode)
	}

	var out Scores
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&out); err != nil {
		return Scores{}, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	return out, nil
}

// HTTPOCR posts raw media bytes to an OCR endpoint that answers
// {"text": string}.
type HTTPOCR struct {
	Client   *http.Client
	Endpoint string
}

// NewHTTPOCR returns an OCR client for endpoint.
func NewHTTPOCR(client *http.Client, endpoint string) *HTTPOCR {
	return &HTTPOCR{Client: client, Endpoint: endpoint}
}

func (o *HTTPOCR) Extract(ctx context.Context, data []byte, mime string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	defer func() {
		oracleDuration.WithLabelValues("ocr").Observe(time.Since(start).Seconds())
	}()

	res, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer res.Body.Close()

	oracleCount.WithLabelValues("ocr", fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr request failed statusCode=%d", res.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse ocr response: %w", err)
	}
	return out.Text, nil
}
