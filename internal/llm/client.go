// Package llm canonicalizes addresses through a chat-completion service.
// A batch of rows goes out as one conversation and the answers come back as
// "SNO=<id>, ADDR_GAI=<address>" lines.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cif-address/internal/debug"
)

var (
	// ErrUpstream covers transport failures and non-200 answers.
	ErrUpstream = errors.New("llm upstream error")
	// ErrRejected is returned when the service answers success=false.
	ErrRejected = errors.New("llm request rejected")
	// ErrInvalidResponse is returned for bodies that cannot be decoded.
	ErrInvalidResponse = errors.New("llm response invalid")
)

// Options configures the client.
type Options struct {
	URL               string
	APIKey            string
	SystemID          string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond float64
	LocalDebug        bool
}

func (o *Options) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 3000
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
}

// Item is one address to canonicalize.
type Item struct {
	ID      string
	Address string
}

// Answer is one parsed result line.
type Answer struct {
	ID      string
	Address string
}

// Client calls the chat-completion endpoint.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	do      func(*http.Request) (*http.Response, error)
}

// NewClient validates opts and builds a client.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("llm: missing URL")
	}
	if opts.APIKey == "" {
		return nil, errors.New("llm: missing API key")
	}
	opts.defaults()

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	hc := &http.Client{Timeout: opts.Timeout}
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		do:      hc.Do,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	N                int           `json:"n"`
	MaxTokens        int           `json:"max_tokens"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
}

type chatResponse struct {
	Success    bool            `json:"success"`
	ReturnCode json.RawMessage `json:"returnCode"`
	Result     struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"result"`
}

// Canonicalize sends items as one request and returns the parsed answers.
// Answers may be fewer than items; callers match them by ID.
func (c *Client) Canonicalize(ctx context.Context, items []Item) ([]Answer, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.buildRequest(items))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("api-key", c.opts.APIKey)
	req.Header.Set("systemId", c.opts.SystemID)
	req.Header.Set("Content-Type", "application/json")

	done := debug.DebugTiming(c.opts.LocalDebug, fmt.Sprintf("llm request with %d addresses", len(items)))
	resp, err := c.do(req)
	done()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !cr.Success {
		return nil, fmt.Errorf("%w: returnCode %s", ErrRejected, cr.ReturnCode)
	}
	if len(cr.Result.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	content := cr.Result.Choices[0].Message.Content
	debug.DebugOutput(c.opts.LocalDebug, "llm raw answer: %s", content)
	return ParseAnswers(content), nil
}

func (c *Client) buildRequest(items []Item) chatRequest {
	msgs := make([]chatMessage, 0, len(items)+1)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, it := range items {
		msgs = append(msgs, chatMessage{
			Role:    "user",
			Content: fmt.Sprintf("SNO=%s, 地址=%s", it.ID, it.Address),
		})
	}
	return chatRequest{
		Messages:    msgs,
		Temperature: c.opts.Temperature,
		N:           1,
		MaxTokens:   c.opts.MaxTokens,
	}
}

// ParseAnswers extracts "SNO=<id>, ADDR_GAI=<address>" lines. Other lines
// are ignored.
func ParseAnswers(content string) []Answer {
	var out []Answer
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "SNO=") {
			continue
		}
		id, addr, ok := strings.Cut(line, ", ADDR_GAI=")
		if !ok {
			continue
		}
		out = append(out, Answer{
			ID:      strings.TrimSpace(strings.TrimPrefix(id, "SNO=")),
			Address: strings.TrimSpace(addr),
		})
	}
	return out
}
