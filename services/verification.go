package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ecohunt-be/models"
	"ecohunt-be/workflow"
)

const defaultVisionTimeout = 30 * time.Second

type visionMessage struct {
	Role    string        `json:"role"`
	Content []visionPart  `json:"content"`
}

type visionPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionRequest struct {
	Model       string          `json:"model"`
	Messages    []visionMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// verificationPayload is the JSON document the vision model is instructed
// to answer with when judging an after-cleanup photo.
type verificationPayload struct {
	Passed        bool    `json:"passed"`
	QualityScore  int     `json:"quality_score"`
	Completeness  string  `json:"completeness"`
	Feedback      string  `json:"feedback"`
	FailureReason string  `json:"failure_reason"`
	Impact        struct {
		WasteRemovedKg       float64 `json:"waste_removed_kg"`
		CO2SavedKg           float64 `json:"co2_saved_kg"`
		RecyclablesRecovered int     `json:"recyclables_recovered"`
	} `json:"impact"`
}

// analysisPayload is the JSON answer for report-time severity analysis.
type analysisPayload struct {
	Severity            string `json:"severity"`
	CleanupInstructions string `json:"cleanup_instructions"`
}

const verifyPrompt = `You judge before/after photos of litter cleanups. ` +
	`Compare the two photos and answer with a single JSON object: ` +
	`{"passed":bool,"quality_score":0-100,"completeness":string,` +
	`"feedback":string,"failure_reason":string,` +
	`"impact":{"waste_removed_kg":number,"co2_saved_kg":number,"recyclables_recovered":number}}. ` +
	`Set passed=false with a failure_reason when visible waste remains.`

const analyzePrompt = `You classify photos of littered areas. Answer with a ` +
	`single JSON object: {"severity":"low"|"medium"|"high",` +
	`"cleanup_instructions":string}.`

// VisionVerifier judges cleanup photos through an OpenAI-compatible vision
// endpoint. Timeouts and transport errors come back as failed verification
// results so the flow treats them as a retryable condition, never a crash.
type VisionVerifier struct {
	client *http.Client
}

func NewVisionVerifier() *VisionVerifier {
	return &VisionVerifier{client: &http.Client{Timeout: defaultVisionTimeout}}
}

var _ workflow.VerificationService = (*VisionVerifier)(nil)

// Verify implements workflow.VerificationService.
func (v *VisionVerifier) Verify(ctx context.Context, beforePhoto, afterPhoto string) (*workflow.VerificationResult, error) {
	parts := []visionPart{{Type: "text", Text: "Judge this cleanup."}}
	if beforePhoto != "" {
		parts = append(parts, visionPart{Type: "image_url", ImageURL: &visionImageURL{URL: beforePhoto}})
	}
	parts = append(parts, visionPart{Type: "image_url", ImageURL: &visionImageURL{URL: afterPhoto}})

	content, err := v.chat(ctx, verifyPrompt, parts)
	if err != nil {
		// The flow keeps the user in the after-photo step on failure, so a
		// dead or slow backend reads as "try again" rather than a 500.
		return &workflow.VerificationResult{
			Passed:        false,
			Completeness:  "Failed",
			FailureReason: "Verification service unavailable, please retry: " + err.Error(),
		}, nil
	}

	var payload verificationPayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		return nil, fmt.Errorf("unexpected verification response: %w", err)
	}

	result := &workflow.VerificationResult{
		Passed:        payload.Passed,
		Completeness:  payload.Completeness,
		Feedback:      payload.Feedback,
		FailureReason: payload.FailureReason,
	}
	if payload.Passed {
		score := payload.QualityScore
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		result.QualityScore = score
		result.Impact = workflow.ImpactMetrics{
			WasteRemovedKg:       payload.Impact.WasteRemovedKg,
			CO2SavedKg:           payload.Impact.CO2SavedKg,
			RecyclablesRecovered: payload.Impact.RecyclablesRecovered,
		}
	} else if result.FailureReason == "" {
		result.FailureReason = "The area isn't cleaned sufficiently. Please ensure all visible waste is removed before taking the photo."
	}
	return result, nil
}

// AnalyzeReport classifies a reported area's photo into a severity and
// suggests cleanup instructions. Reporting never fails because of the AI:
// on any error the caller falls back to manual or low severity.
func (v *VisionVerifier) AnalyzeReport(ctx context.Context, photo string) (models.Severity, string, error) {
	parts := []visionPart{
		{Type: "text", Text: "Classify this littered area."},
		{Type: "image_url", ImageURL: &visionImageURL{URL: photo}},
	}

	content, err := v.chat(ctx, analyzePrompt, parts)
	if err != nil {
		return "", "", err
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		return "", "", fmt.Errorf("unexpected analysis response: %w", err)
	}
	if !models.ValidSeverity(payload.Severity) {
		return "", "", fmt.Errorf("unknown severity %q", payload.Severity)
	}
	return models.Severity(payload.Severity), payload.CleanupInstructions, nil
}

func (v *VisionVerifier) chat(ctx context.Context, systemPrompt string, parts []visionPart) (string, error) {
	apiKey := os.Getenv("VISION_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("VISION_API_KEY not set")
	}

	apiURL := os.Getenv("VISION_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1/chat/completions"
	}

	model := os.Getenv("VISION_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	reqBody := visionRequest{
		Model: model,
		Messages: []visionMessage{
			{Role: "system", Content: []visionPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: parts},
		},
		Temperature: 0.2,
		MaxTokens:   1000,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var visionResp visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&visionResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(visionResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return visionResp.Choices[0].Message.Content, nil
}

// extractJSON tolerates models that wrap their JSON answer in prose or
// markdown fences.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
