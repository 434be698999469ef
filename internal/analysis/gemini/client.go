package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"examscan-backend/internal/analysis"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements analysis.Client against the Gemini generateContent API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Gemini client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Gemini")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("GEMINI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *inlineDataPart `json:"inline_data,omitempty"`
}

type inlineDataPart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Analyze submits one document (image or PDF) and parses the structured
// exam-question record from the response. Failures are classified so the
// retry layer can tell quota pressure from transient server faults.
func (c *Client) Analyze(ctx context.Context, input analysis.Input) (analysis.Record, error) {
	// The document always rides along as inline_data; generateContent renders
	// PDFs as well as images, so a scan with no text layer still reaches the
	// model. Extracted source text is supplemental context, never a substitute.
	parts := []generatePart{{Text: BuildInstruction(input.Languages, input.SourceText)}}
	if len(input.Content) > 0 {
		parts = append(parts, generatePart{InlineData: &inlineDataPart{
			MimeType: input.MimeType,
			Data:     base64.StdEncoding.EncodeToString(input.Content),
		}})
	}

	reqBody := generateRequest{
		Contents: []generateContent{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindUnknown, Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindUnknown, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindUnknown, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return analysis.Record{}, classifyHTTP(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindMalformed, Err: fmt.Errorf("gemini response parse: %w", err)}
	}
	if parsed.Error != nil {
		return analysis.Record{}, classifyAPIError(parsed.Error.Code, parsed.Error.Status, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindMalformed, Err: errors.New("gemini response missing candidates")}
	}

	content := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if content == "" {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindMalformed, Err: errors.New("gemini response empty content")}
	}

	var rec analysis.Record
	if err := json.Unmarshal([]byte(content), &rec); err != nil {
		return analysis.Record{}, &analysis.Error{Kind: analysis.KindMalformed, Err: fmt.Errorf("record parse: %w", err)}
	}
	rec.Languages = append([]string(nil), input.Languages...)
	if err := analysis.ValidateRecord(rec, input.Languages); err != nil {
		return analysis.Record{}, err
	}
	return rec, nil
}

func classifyHTTP(status int, body []byte) *analysis.Error {
	msg := strings.TrimSpace(string(body))
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return &analysis.Error{Kind: analysis.KindQuotaExceeded, Err: fmt.Errorf("gemini %d: %s", status, msg)}
	case status >= 500:
		return &analysis.Error{Kind: analysis.KindServerError, Err: fmt.Errorf("gemini %d: %s", status, msg)}
	default:
		return &analysis.Error{Kind: analysis.KindUnknown, Err: fmt.Errorf("gemini %d: %s", status, msg)}
	}
}

func classifyAPIError(code int, status, message string) *analysis.Error {
	err := fmt.Errorf("gemini error %d %s: %s", code, status, message)
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return &analysis.Error{Kind: analysis.KindQuotaExceeded, Err: err}
	case code >= 500:
		return &analysis.Error{Kind: analysis.KindServerError, Err: err}
	default:
		return &analysis.Error{Kind: analysis.KindUnknown, Err: err}
	}
}

var _ analysis.Client = (*Client)(nil)
