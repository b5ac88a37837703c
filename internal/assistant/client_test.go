package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Message != "What about UV exposure?" {
			t.Errorf("message = %q", req.Message)
		}

		json.NewEncoder(w).Encode(ChatResponse{Reply: "Limit midday sun."})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)

	resp, err := c.Chat(context.Background(), &ChatRequest{
		Message:   "What about UV exposure?",
		PatientID: "patient-001",
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.Reply != "Limit midday sun." {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestChatGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)

	_, err := c.Chat(context.Background(), &ChatRequest{Message: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestRecommendRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recommendations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(RecommendationResponse{
			Diagnosis: "Plaque psoriasis",
			NextSteps: []string{"Blood work"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)

	resp, err := c.Recommend(context.Background(), &RecommendationRequest{
		PatientID: "patient-001",
		Condition: "Psoriasis",
	})
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}
	if resp.Diagnosis != "Plaque psoriasis" || len(resp.NextSteps) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}
