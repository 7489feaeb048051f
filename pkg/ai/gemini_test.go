package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mandi/pkg/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewGeminiClient("test-key", "gemini-test")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client.WithBaseURL(server.URL)
}

func textResponse(text string) []byte {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
	data, _ := json.Marshal(resp)
	return data
}

func TestNewGeminiClientValidation(t *testing.T) {
	if _, err := NewGeminiClient("", "model"); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewGeminiClient("key", "  "); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestTranslateText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 {
			t.Fatalf("expected one content, got %d", len(req.Contents))
		}
		w.Write(textResponse("Fresh tomatoes"))
	})
	out, err := client.TranslateText(context.Background(), "ताजे टमाटर", domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Fresh tomatoes" {
		t.Fatalf("unexpected translation: %q", out)
	}
}

func TestTranslateTextSurfacesAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	})
	if _, err := client.TranslateText(context.Background(), "text", domain.LanguageEnglish); err == nil {
		t.Fatalf("expected error from API failure")
	}
}

func TestExtractListing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Fatalf("extraction must request a JSON response")
		}
		w.Write(textResponse(`{"item":"Tomato","quantity":"50kg","price":30,"description":"Fresh tomatoes","category":"Vegetables"}`))
	})
	draft, err := client.ExtractListing(context.Background(), "50kg tomatoes, 30 rupees")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if draft == nil {
		t.Fatalf("expected a draft")
	}
	if draft.Item != "Tomato" || draft.Price != 30 || draft.Category != domain.CategoryVegetables {
		t.Fatalf("unexpected draft: %+v", draft)
	}
}

func TestExtractListingNoMatchReturnsNilDraft(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(`{"item":"","price":0,"category":"Other"}`))
	})
	draft, err := client.ExtractListing(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if draft != nil {
		t.Fatalf("expected nil draft for empty item, got %+v", draft)
	}
}

func TestMarketInsightFallsBackOnFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	insight, err := client.MarketInsight(context.Background(), "Onion (Red)")
	if err != nil {
		t.Fatalf("insight should not error: %v", err)
	}
	if insight != defaultInsight {
		t.Fatalf("expected canned insight, got %q", insight)
	}
}
