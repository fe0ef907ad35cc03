package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecohunt-be/models"
)

func visionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		var req visionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode vision request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func setVisionEnv(t *testing.T, url string) {
	t.Helper()
	t.Setenv("VISION_API_KEY", "test-key")
	t.Setenv("VISION_API_URL", url)
}

func TestVerifyPassingResult(t *testing.T) {
	server := visionServer(t, `{"passed":true,"quality_score":87,"completeness":"Excellent",`+
		`"feedback":"Great work","impact":{"waste_removed_kg":4.5,"co2_saved_kg":2.1,"recyclables_recovered":12}}`)
	defer server.Close()
	setVisionEnv(t, server.URL)

	result, err := NewVisionVerifier().Verify(context.Background(), "before.jpg", "after.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed {
		t.Fatal("expected a passing result")
	}
	if result.QualityScore != 87 {
		t.Errorf("expected score 87, got %d", result.QualityScore)
	}
	if result.Impact.WasteRemovedKg != 4.5 || result.Impact.RecyclablesRecovered != 12 {
		t.Errorf("unexpected impact metrics %+v", result.Impact)
	}
}

func TestVerifyClampsQualityScore(t *testing.T) {
	server := visionServer(t, `{"passed":true,"quality_score":140,"completeness":"Excellent"}`)
	defer server.Close()
	setVisionEnv(t, server.URL)

	result, err := NewVisionVerifier().Verify(context.Background(), "", "after.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if result.QualityScore != 100 {
		t.Errorf("expected score clamped to 100, got %d", result.QualityScore)
	}
}

func TestVerifyRejection(t *testing.T) {
	server := visionServer(t, `{"passed":false,"completeness":"Failed","failure_reason":"waste still visible"}`)
	defer server.Close()
	setVisionEnv(t, server.URL)

	result, err := NewVisionVerifier().Verify(context.Background(), "before.jpg", "after.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed {
		t.Fatal("expected a failed result")
	}
	if result.FailureReason != "waste still visible" {
		t.Errorf("unexpected failure reason %q", result.FailureReason)
	}
	if result.QualityScore != 0 {
		t.Errorf("failed result should carry no score, got %d", result.QualityScore)
	}
}

func TestVerifyRejectionGetsDefaultReason(t *testing.T) {
	server := visionServer(t, `{"passed":false,"completeness":"Failed"}`)
	defer server.Close()
	setVisionEnv(t, server.URL)

	result, err := NewVisionVerifier().Verify(context.Background(), "before.jpg", "after.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed || result.FailureReason == "" {
		t.Fatalf("expected a failed result with a default reason, got %+v", result)
	}
}

func TestVerifyServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()
	setVisionEnv(t, server.URL)

	result, err := NewVisionVerifier().Verify(context.Background(), "before.jpg", "after.jpg")
	if err != nil {
		t.Fatalf("transport problems must come back as a failed result, got error %v", err)
	}
	if result.Passed {
		t.Fatal("expected a failed result")
	}
	if !strings.Contains(result.FailureReason, "retry") {
		t.Errorf("expected a retry hint in %q", result.FailureReason)
	}
}

func TestVerifyTimeoutIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()
	setVisionEnv(t, server.URL)

	verifier := &VisionVerifier{client: &http.Client{Timeout: 20 * time.Millisecond}}
	result, err := verifier.Verify(context.Background(), "before.jpg", "after.jpg")
	if err != nil {
		t.Fatalf("a timeout must come back as a failed result, got error %v", err)
	}
	if result.Passed {
		t.Fatal("expected a failed result")
	}
}

func TestVerifyMissingAPIKeyIsRetryable(t *testing.T) {
	t.Setenv("VISION_API_KEY", "")

	result, err := NewVisionVerifier().Verify(context.Background(), "before.jpg", "after.jpg")
	if err != nil {
		t.Fatalf("missing configuration must come back as a failed result, got error %v", err)
	}
	if result.Passed {
		t.Fatal("expected a failed result")
	}
}

func TestAnalyzeReport(t *testing.T) {
	server := visionServer(t, "Here is my assessment:\n```json\n"+
		`{"severity":"high","cleanup_instructions":"Bring gloves and heavy-duty bags."}`+
		"\n```")
	defer server.Close()
	setVisionEnv(t, server.URL)

	severity, instructions, err := NewVisionVerifier().AnalyzeReport(context.Background(), "report.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if severity != models.SeverityHigh {
		t.Errorf("expected high severity, got %s", severity)
	}
	if instructions == "" {
		t.Error("expected cleanup instructions")
	}
}

func TestAnalyzeReportRejectsUnknownSeverity(t *testing.T) {
	server := visionServer(t, `{"severity":"catastrophic","cleanup_instructions":"run"}`)
	defer server.Close()
	setVisionEnv(t, server.URL)

	if _, _, err := NewVisionVerifier().AnalyzeReport(context.Background(), "report.jpg"); err == nil {
		t.Fatal("expected an error for an unknown severity")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Sure! ```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no json here", "no json here"},
	}
	for _, tc := range cases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
