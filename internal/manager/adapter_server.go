package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"oncoqa/internal/common/fsutil"
)

// ServerRuntimeConfig configures a runtime backed by an OpenAI-compatible
// inference server (e.g. llama.cpp's llama-server).
type ServerRuntimeConfig struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

type serverRuntime struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewServerRuntime constructs a server-backed runtime.
func NewServerRuntime(cfg ServerRuntimeConfig) Runtime {
	cli := cfg.HTTPClient
	if cli == nil {
		connect := cfg.ConnectTimeout
		if connect <= 0 {
			connect = 5 * time.Second
		}
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Timeout=0: every request carries its deadline on the context.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	return &serverRuntime{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: cli,
	}
}

type openAIModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Load checks the server is reachable and, when it advertises a model list,
// that the requested model is among them.
func (r *serverRuntime) Load(ctx context.Context, opts LoadOptions) (Pipeline, error) {
	if r.baseURL == "" {
		return nil, ErrDependencyUnavailable("inference server URL not configured")
	}
	if fsutil.LooksLikeLocalPath(opts.ModelID) && !opts.Env.AllowLocalModels {
		return nil, fmt.Errorf("local model paths are disabled: %s", opts.ModelID)
	}
	reportProgress(opts, 0, opts.ModelID)

	req, err := r.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrDependencyUnavailable(fmt.Sprintf("inference server unreachable: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpStatusError(resp)
	}
	reportProgress(opts, 0.5, opts.ModelID)

	var list openAIModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	if len(list.Data) > 0 {
		found := false
		for _, d := range list.Data {
			if d.ID == opts.ModelID {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrModelNotFound(opts.ModelID)
		}
	}
	reportProgress(opts, 1, opts.ModelID)
	return &serverPipeline{rt: r, modelID: opts.ModelID, cachePrompt: opts.Env.UseCache}, nil
}

func (r *serverRuntime) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	return req, nil
}

// serverPipeline generates through /v1/completions.
type serverPipeline struct {
	rt          *serverRuntime
	modelID     string
	cachePrompt bool
}

// openAICompletionRequest represents the payload for /v1/completions.
type openAICompletionRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature"`
	TopK        int     `json:"top_k,omitempty"`
	Stream      bool    `json:"stream"`
	// CachePrompt is a llama.cpp extension; other servers ignore it.
	CachePrompt bool `json:"cache_prompt,omitempty"`
}

type openAICompletionResponse struct {
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *serverPipeline) Generate(ctx context.Context, input string, opts GenerateOptions) ([]Candidate, error) {
	payload := openAICompletionRequest{
		Model:       p.modelID,
		Prompt:      input,
		MaxTokens:   opts.MaxNewTokens,
		Temperature: opts.Temperature,
		Stream:      false,
		CachePrompt: p.cachePrompt,
	}
	if !opts.DoSample {
		payload.Temperature = 0
		payload.TopK = 1
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := p.rt.newRequest(ctx, http.MethodPost, "/v1/completions", body)
	if err != nil {
		return nil, err
	}
	resp, err := p.rt.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpStatusError(resp)
	}
	var out openAICompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("inference server returned no choices")
	}
	sort.SliceStable(out.Choices, func(i, j int) bool { return out.Choices[i].Index < out.Choices[j].Index })
	cands := make([]Candidate, 0, len(out.Choices))
	for _, c := range out.Choices {
		cands = append(cands, Candidate{GeneratedText: strings.TrimSpace(c.Text)})
	}
	return cands, nil
}

func httpStatusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("inference server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
}
