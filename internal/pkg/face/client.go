package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Gender is the label reported by the classifier.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Prediction represents the result of face/gender classification.
type Prediction struct {
	FaceDetected bool
	Gender       Gender
	Probability  float64 // confidence in Gender, 0.0 to 1.0
	ProcessedAt  time.Time
}

// MaleProbability converts the prediction into a male probability.
// The second return value is false when no usable face/gender was found.
func (p *Prediction) MaleProbability() (float64, bool) {
	if p == nil || !p.FaceDetected {
		return 0, false
	}
	switch p.Gender {
	case GenderMale:
		return p.Probability, true
	case GenderFemale:
		return 1 - p.Probability, true
	default:
		return 0, false
	}
}

// Config holds configuration for the classifier client.
type Config struct {
	BaseURL string // classifier API URL, e.g., "http://localhost:8090"
	Timeout time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8090",
		Timeout: 30 * time.Second,
	}
}

// Client is a client for a face detection + age/gender model served over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new classifier client.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// apiResponse represents the API response of the classifier.
type apiResponse struct {
	FaceDetected bool    `json:"face_detected"`
	Gender       string  `json:"gender"`
	Probability  float64 `json:"probability"`
}

// Classify detects a single face in the image bytes and classifies its gender.
func (c *Client) Classify(ctx context.Context, imageData []byte) (*Prediction, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return c.doRequest(ctx, body, writer.FormDataContentType())
}

func (c *Client) doRequest(ctx context.Context, body *bytes.Buffer, contentType string) (*Prediction, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call classifier API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if apiResp.Probability < 0 || apiResp.Probability > 1 {
		return nil, fmt.Errorf("classifier returned probability %v outside [0,1]", apiResp.Probability)
	}

	return &Prediction{
		FaceDetected: apiResp.FaceDetected,
		Gender:       Gender(strings.ToLower(apiResp.Gender)),
		Probability:  apiResp.Probability,
		ProcessedAt:  time.Now(),
	}, nil
}

// Ping checks if the classifier API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier API not reachable at %s: %w", c.config.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier API returned status %d", resp.StatusCode)
	}

	return nil
}
