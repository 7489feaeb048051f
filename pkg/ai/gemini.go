package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mandi/pkg/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const defaultInsight = "Market conditions appear stable based on historical data."

// GeminiClient calls the Google AI Studio (Gemini) API for translation,
// listing extraction, and market insight.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with the provided API key and model.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	model = strings.TrimSpace(strings.TrimPrefix(model, "models/"))
	if model == "" {
		return nil, fmt.Errorf("gemini model required")
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *GeminiClient) WithBaseURL(baseURL string) *GeminiClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func languageName(lang domain.Language) string {
	switch lang {
	case domain.LanguageHindi:
		return "Hindi"
	default:
		return "English"
	}
}

// TranslateText returns text translated into the target language.
func (c *GeminiClient) TranslateText(ctx context.Context, text string, target domain.Language) (string, error) {
	prompt := fmt.Sprintf("Translate the following text to %s.\nOnly return the translated text. Do not add explanations.\nText: %q", languageName(target), text)
	out, err := c.generate(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty translation from gemini")
	}
	return out, nil
}

var extractionSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"item":        {Type: "STRING"},
		"quantity":    {Type: "STRING"},
		"price":       {Type: "NUMBER"},
		"description": {Type: "STRING"},
		"category":    {Type: "STRING", Enum: []string{"Vegetables", "Fruits", "Grains", "Other"}},
	},
	Required: []string{"item", "price", "category"},
}

// ExtractListing parses listing fields from free text. Returns (nil, nil)
// when the model produced no usable structure.
func (c *GeminiClient) ExtractListing(ctx context.Context, text string) (*ListingDraft, error) {
	prompt := fmt.Sprintf("Extract the item name, quantity, price (numeric only), category (Vegetables, Fruits, Grains, or Other) and a short description from the following text.\nReturn JSON.\nText: %q", text)
	out, err := c.generate(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   extractionSchema,
		},
	})
	if err != nil {
		return nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var draft ListingDraft
	if err := json.Unmarshal([]byte(out), &draft); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	if strings.TrimSpace(draft.Item) == "" {
		return nil, nil
	}
	return &draft, nil
}

// MarketInsight returns a one sentence wholesale price commentary. The canned
// default is returned with a nil error on any upstream failure so the widget
// never breaks.
func (c *GeminiClient) MarketInsight(ctx context.Context, item string) (string, error) {
	prompt := fmt.Sprintf("Give a one sentence market insight for %s prices in Indian wholesale markets today. Keep it concise.", item)
	out, err := c.generate(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil || strings.TrimSpace(out) == "" {
		return defaultInsight, nil
	}
	return strings.TrimSpace(out), nil
}

func (c *GeminiClient) generate(ctx context.Context, reqBody generateRequest) (string, error) {
	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	if err := c.doJSON(ctx, url, reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type       string             `json:"type"`
	Enum       []string           `json:"enum,omitempty"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
