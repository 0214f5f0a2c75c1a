package llm

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var (
	ErrTimeout           = errors.New("llm timeout")
	ErrConnectionRefused = errors.New("llm connection refused")
	ErrMalformedResponse = errors.New("llm malformed response")
)

const DefaultPersona = "You are J.A.R.V.I.S., a concise and friendly personal voice assistant. " +
	"Answer in one or two short spoken sentences without markdown."

type Config struct {
	BaseURL    string // e.g. http://localhost:11434
	Model      string
	APIKey     string
	Persona    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a locally hosted model server. A prompt is first sent
// as a chat completion; if that fails it is retried once as a plain
// generate request against the same host.
type Client struct {
	api     openai.Client
	http    *http.Client
	baseURL string
	model   string
	persona string
	timeout time.Duration
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	persona := cfg.Persona
	if persona == "" {
		persona = DefaultPersona
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but the SDK insists on sending one.
		apiKey = "ollama"
	}

	api := openai.NewClient(
		option.WithBaseURL(baseURL+"/v1/"),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &Client{
		api:     api,
		http:    httpClient,
		baseURL: baseURL,
		model:   cfg.Model,
		persona: persona,
		timeout: timeout,
	}
}

// Chat returns the model's answer to prompt. Errors wrap one of
// ErrTimeout, ErrConnectionRefused or ErrMalformedResponse.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.chat(ctx, prompt)
	if err == nil {
		return text, nil
	}
	log.Debug("Chat request failed, trying generate", "err", err)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if ctx.Err() != nil {
		return "", classify(err)
	}

	text, err = c.generate(ctx, prompt)
	if err != nil {
		return "", classify(err)
	}
	return text, nil
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.persona),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message content", ErrMalformedResponse)
	}

	return content, nil
}

// Probe checks that the model server answers its model listing.
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.api.Models.List(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionRefused) || errors.Is(err, ErrMalformedResponse) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED), isDialError(err):
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
