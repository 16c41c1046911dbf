package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// googleProvider calls Google's embedContent endpoint. Retargeted from the
// teacher's chat-completion callGoogle to an embedding endpoint, and from
// syscall/js fetch to net/http since this repo runs as a normal OS process
// rather than inside a browser WASM module.
type googleProvider struct {
	apiKey string
	model  string
}

type googleEmbedRequest struct {
	Content googleEmbedContent `json:"content"`
}

type googleEmbedContent struct {
	Parts []googleEmbedPart `json:"parts"`
}

type googleEmbedPart struct {
	Text string `json:"text"`
}

type googleEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *googleProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	url := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent?key=%s",
		p.model, p.apiKey,
	)

	reqBody, err := json.Marshal(googleEmbedRequest{
		Content: googleEmbedContent{Parts: []googleEmbedPart{{Text: text}}},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal google request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embedding: build google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: google request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read google response: %w", err)
	}

	var parsed googleEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: parse google response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding: google API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding: empty embedding in google response")
	}
	return parsed.Embedding.Values, nil
}
