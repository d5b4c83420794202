package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"carepath/pkg"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) GeminiOption {
	return func(c *GeminiClient) { c.httpClient = hc }
}

// GeminiClient calls the generateContent REST endpoint.  Grounded requests
// enable the google_search tool and report the web pages it cited.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewGeminiClient(cfg GeminiConfig, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
	if c.model == "" {
		c.model = DefaultGeminiModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultGeminiBaseURL
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type geminiRequest struct {
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	Tools             []geminiTool      `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("gemini: non-2xx response: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if gr.Error != nil {
		return nil, fmt.Errorf("gemini: %s (%d %s)", gr.Error.Message, gr.Error.Code, gr.Error.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini: non-2xx response: %d", resp.StatusCode)
	}

	out := &Response{Sources: []pkg.Source{}}
	if len(gr.Candidates) == 0 {
		return out, nil
	}
	cand := gr.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	out.Text = sb.String()
	if cand.GroundingMetadata != nil {
		var sources []pkg.Source
		for _, ch := range cand.GroundingMetadata.GroundingChunks {
			if ch.Web != nil {
				sources = append(sources, pkg.Source{Title: ch.Web.Title, URI: ch.Web.URI})
			}
		}
		out.Sources = keepSources(sources)
	}
	return out, nil
}

func (c *GeminiClient) buildRequest(req Request) geminiRequest {
	gr := geminiRequest{}
	if req.System != "" {
		gr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := "user"
		switch m.Role {
		case "assistant":
			role = "model"
		case "system":
			// Gemini has no system turns inside contents.
			if gr.SystemInstruction == nil {
				gr.SystemInstruction = &geminiContent{}
			}
			gr.SystemInstruction.Parts = append(gr.SystemInstruction.Parts, geminiPart{Text: m.Content})
			continue
		}
		gr.Contents = append(gr.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	gr.Contents = append(gr.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}})

	if req.Grounded {
		gr.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}
	if req.Schema != nil {
		gr.GenerationConfig = &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   geminiSchema(*req.Schema),
		}
	}
	return gr
}

// geminiSchema converts a JSON schema definition into the OpenAPI subset
// accepted by responseSchema.
func geminiSchema(d jsonschema.Definition) map[string]any {
	s := map[string]any{}
	if d.Type != "" {
		s["type"] = strings.ToUpper(string(d.Type))
	}
	if d.Description != "" {
		s["description"] = d.Description
	}
	if len(d.Enum) > 0 {
		s["enum"] = d.Enum
	}
	if len(d.Properties) > 0 {
		props := make(map[string]any, len(d.Properties))
		for name, p := range d.Properties {
			props[name] = geminiSchema(p)
		}
		s["properties"] = props
	}
	if len(d.Required) > 0 {
		s["required"] = d.Required
	}
	if d.Items != nil {
		s["items"] = geminiSchema(*d.Items)
	}
	return s
}
