package fakedetect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/crisispulse/CrisisPulse/internal/pkg/env"
)

// AnalyzerClient talks to the external text/image analyzer service. Calls
// carry a bounded timeout; a failed or slow analyzer leaves the report's
// fake-detection score null instead of failing anything upstream.
type AnalyzerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAnalyzerClient builds a client from the environment. Returns nil when
// no analyzer is configured, which callers treat as "no signals available".
func NewAnalyzerClient() *AnalyzerClient {
	baseURL := strings.TrimRight(env.GetEnv("ANALYZER_URL", ""), "/")
	if baseURL == "" {
		return nil
	}

	timeout := 10 * time.Second
	if raw := env.GetEnv("ANALYZER_TIMEOUT", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	}

	return &AnalyzerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// analyzeRequest is the payload sent to the analyzer.
type analyzeRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	MediaURLs   []string `json:"media_urls"`
}

// analyzeResponse mirrors the analyzer's wire format. Images may carry
// either pre-extracted metadata or a raw EXIF segment.
type analyzeResponse struct {
	Text   *TextAnalysis `json:"text"`
	Images []struct {
		ImageSignal
		RawEXIF []byte `json:"raw_exif,omitempty"`
	} `json:"images"`
}

// Analyze runs text and image analysis for a report. Any transport or
// payload error is logged and reported to the caller, who degrades to a
// null score.
func (c *AnalyzerClient) Analyze(ctx context.Context, title, description string, mediaURLs []string) (*TextAnalysis, []ImageSignal, error) {
	body, err := json.Marshal(analyzeRequest{
		Title:       title,
		Description: description,
		MediaURLs:   mediaURLs,
	})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", strings.NewReader(string(body)))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warnf("[FakeDetect] analyzer call failed: %v", err)
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("[FakeDetect] analyzer returned status %d", resp.StatusCode)
		return nil, nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Warnf("[FakeDetect] malformed analyzer payload: %v", err)
		return nil, nil, err
	}

	signals := make([]ImageSignal, 0, len(result.Images))
	for _, img := range result.Images {
		signal := img.ImageSignal
		if len(img.RawEXIF) > 0 {
			signal = DecodeEXIF(img.RawEXIF)
		}
		signals = append(signals, signal)
	}
	return result.Text, signals, nil
}
