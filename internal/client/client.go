package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/attempt-engine/internal/answers"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client speaks the student-facing assessment protocol. All requests are
// credentialed; the base URL comes from configuration.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  utils.Logger
}

func New(baseURL, token string, logger utils.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		logger:  logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// ListAssessments fetches every assessment visible to the student. The
// caller filters by id locally.
func (c *Client) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	url := c.baseURL + "/bd/student/assessments"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build assessments request: %w", err)
	}
	c.authorize(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assessments: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d fetching assessments", ErrUnexpectedStatus, status)
	}

	return decodeAssessmentList(body)
}

// decodeAssessmentList accepts both a bare array and a {"data": [...]}
// wrapper, which the backend has served at different times.
func decodeAssessmentList(body []byte) ([]models.Assessment, error) {
	var list []models.Assessment
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Data []models.Assessment `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode assessment list: %w", err)
	}
	return wrapped.Data, nil
}

// SubmitAnswer posts one question's answer as a multipart form. The
// caller decides what to do with a failure; the protocol itself is
// best-effort by design.
func (c *Client) SubmitAnswer(ctx context.Context, questionID uint, payload answers.WirePayload) error {
	url := fmt.Sprintf("%s/bd/student/questions/%d/answer", c.baseURL, questionID)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("answer_type", payload.AnswerType); err != nil {
		return fmt.Errorf("failed to encode answer form: %w", err)
	}
	switch payload.AnswerType {
	case "image":
		if payload.Image == nil {
			return fmt.Errorf("image answer for question %d has no file", questionID)
		}
		part, err := writer.CreateFormFile("image", payload.Image.Name)
		if err != nil {
			return fmt.Errorf("failed to encode answer form: %w", err)
		}
		if _, err := part.Write(payload.Image.Data); err != nil {
			return fmt.Errorf("failed to encode answer form: %w", err)
		}
		if payload.Notes != "" {
			if err := writer.WriteField("notes", payload.Notes); err != nil {
				return fmt.Errorf("failed to encode answer form: %w", err)
			}
		}
	default:
		if err := writer.WriteField("text_answer", payload.TextAnswer); err != nil {
			return fmt.Errorf("failed to encode answer form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to encode answer form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("failed to build answer request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	_, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to submit answer for question %d: %w", questionID, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %d submitting answer for question %d", ErrUnexpectedStatus, status, questionID)
	}
	return nil
}

// SubmitFinal issues the final attempt-submit call. The response body is
// not required to carry a payload; only the status matters.
func (c *Client) SubmitFinal(ctx context.Context, assessmentID uint) error {
	url := fmt.Sprintf("%s/bd/student/assessments/%d/submit", c.baseURL, assessmentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build final submit request: %w", err)
	}
	c.authorize(req)

	_, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to submit assessment %d: %w", assessmentID, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %d submitting assessment %d", ErrUnexpectedStatus, status, assessmentID)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.LogError(err, "HTTP request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"duration", duration.String())
		return nil, 0, err
	}
	defer resp.Body.Close()

	c.logger.LogRequest(req.Method, req.URL.Path, resp.StatusCode, duration.String())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
