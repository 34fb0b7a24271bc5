// Package extract is the client for the external facial extraction
// service: it turns document images into embedding vectors and live video
// captures into liveness verdicts. The computer-vision pipeline itself is
// a black box behind an HTTP API.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/averma/kyc-verify/internal/customer"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 2 * time.Minute // video processing is slow
)

// ErrNoFace is returned when the service processed the input but could not
// find a face in it. Distinct from transport or process failure; both are
// recoverable by resubmitting the capture.
var ErrNoFace = errors.New("no face found in capture")

// Client computes facial embeddings and liveness verdicts using the
// extraction server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new extraction client. An empty baseURL falls back
// to the default, a zero timeout to the default timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// imageResponse represents the response from the image extraction endpoint.
type imageResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// videoResponse represents the response from the video liveness endpoint.
type videoResponse struct {
	IsLive    bool      `json:"is_live"`
	Embedding []float32 `json:"live_face_vector"`
	Cues      struct {
		Blink           bool `json:"blink_detected"`
		MouthMovement   bool `json:"mouth_movement"`
		SkinReflectance bool `json:"skin_reflectance"`
	} `json:"detection_details"`
	Error string `json:"error,omitempty"`
}

// LivenessCapture is the validated result of processing a live video
// capture. Embedding is nil when the service could not extract a face
// vector even though the capture was live.
type LivenessCapture struct {
	IsLive    bool
	Embedding []float32
	Cues      customer.LivenessCues
}

// postMultipart constructs a multipart form with the capture bytes and
// posts it to the given endpoint. The part carries an explicit
// Content-Type based on magic byte detection.
func (c *Client) postMultipart(ctx context.Context, endpoint, filename string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", DetectMIMEType(data))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write capture data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ExtractImage computes the facial embedding for a document image.
func (c *Client) ExtractImage(ctx context.Context, imageData []byte) ([]float32, error) {
	body, err := c.postMultipart(ctx, "/extract/image", "document.jpg", imageData)
	if err != nil {
		return nil, err
	}

	var imgResp imageResponse
	if err := json.Unmarshal(body, &imgResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if imgResp.Error != "" {
		if isNoFaceMessage(imgResp.Error) {
			return nil, fmt.Errorf("%w: %s", ErrNoFace, imgResp.Error)
		}
		return nil, fmt.Errorf("extraction failed: %s", imgResp.Error)
	}

	if len(imgResp.Embedding) == 0 {
		return nil, ErrNoFace
	}
	if imgResp.Dim != 0 && imgResp.Dim != len(imgResp.Embedding) {
		return nil, fmt.Errorf("malformed extraction response: dim %d does not match embedding length %d",
			imgResp.Dim, len(imgResp.Embedding))
	}

	return imgResp.Embedding, nil
}

// ExtractVideo processes a live video capture and returns the liveness
// verdict with its cue breakdown. The embedding is only present when the
// capture was live and a face vector could be extracted.
func (c *Client) ExtractVideo(ctx context.Context, videoData []byte) (*LivenessCapture, error) {
	body, err := c.postMultipart(ctx, "/extract/video", "capture.webm", videoData)
	if err != nil {
		return nil, err
	}

	var vidResp videoResponse
	if err := json.Unmarshal(body, &vidResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if vidResp.Error != "" {
		if isNoFaceMessage(vidResp.Error) {
			return nil, fmt.Errorf("%w: %s", ErrNoFace, vidResp.Error)
		}
		return nil, fmt.Errorf("liveness check failed: %s", vidResp.Error)
	}

	capture := &LivenessCapture{
		IsLive: vidResp.IsLive,
		Cues: customer.LivenessCues{
			Blink:           vidResp.Cues.Blink,
			MouthMovement:   vidResp.Cues.MouthMovement,
			SkinReflectance: vidResp.Cues.SkinReflectance,
		},
	}
	if len(vidResp.Embedding) > 0 {
		capture.Embedding = vidResp.Embedding
	}

	return capture, nil
}

// isNoFaceMessage detects the service's "no face" error strings.
func isNoFaceMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "no face")
}
