package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/todochat/internal/domain"
)

// genericSendFailure is reported when a failure carries no usable message.
const genericSendFailure = "Failed to send message"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20 // 4MB

// Client is the HTTP client for the assistant service.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the service at cfg.BaseURL.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.RequestTimeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

// BaseURL returns the service base URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(identity, resource string) string {
	return c.baseURL + "/api/" + url.PathEscape(identity) + "/" + resource
}

// SendChatMessage posts text to the chat endpoint. It never returns an
// error: network, timeout, status and decoding failures all come back as a
// failed ExchangeResult.
func (c *Client) SendChatMessage(ctx context.Context, identity, text string, conversation domain.ConversationID) domain.ExchangeResult {
	log := c.logger.With("user_id", identity, "conversation_id", conversation.String())

	payload, err := json.Marshal(chatRequest{Message: text, ConversationID: conversation})
	if err != nil {
		log.Error("failed to encode chat request", "error", err)
		return domain.FailedExchange(conversation, transportMessage(err, c.timeout))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(identity, "chat"), bytes.NewReader(payload))
	if err != nil {
		log.Error("failed to build chat request", "error", err)
		return domain.FailedExchange(conversation, transportMessage(err, c.timeout))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("chat request failed", "error", err, "elapsed", time.Since(start))
		return domain.FailedExchange(conversation, transportMessage(err, c.timeout))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug("failed to close chat response body", "error", closeErr)
		}
	}()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := statusMessage(resp, body)
		log.Warn("chat request rejected", "status", resp.StatusCode, "error", msg)
		return domain.FailedExchange(conversation, msg)
	}
	if readErr != nil {
		log.Warn("failed to read chat response", "error", readErr)
		return domain.FailedExchange(conversation, transportMessage(readErr, c.timeout))
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		log.Warn("failed to decode chat response", "error", err)
		return domain.FailedExchange(conversation, transportMessage(fmt.Errorf("decode chat response: %w", err), c.timeout))
	}

	if out.Error != nil && *out.Error != "" {
		log.Info("assistant reported an error", "error", *out.Error)
		return domain.ExchangeResult{ConversationID: out.ConversationID, Err: *out.Error}
	}

	log.Debug("chat exchange complete",
		"elapsed", time.Since(start),
		"response_conversation_id", out.ConversationID.String(),
		"tool_calls", len(out.ToolCalls),
	)
	return domain.ExchangeResult{
		ConversationID: out.ConversationID,
		Response:       out.Response,
		ToolCalls:      out.ToolCalls,
	}
}

// ListConversations fetches the conversation listing. Failures are logged
// and yield an empty slice.
func (c *Client) ListConversations(ctx context.Context, identity string) []domain.ConversationSummary {
	empty := []domain.ConversationSummary{}
	log := c.logger.With("user_id", identity)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(identity, "conversations"), nil)
	if err != nil {
		log.Warn("failed to build conversations request", "error", err)
		return empty
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("conversations request failed", "error", err)
		return empty
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug("failed to close conversations response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("conversations request rejected", "status", resp.StatusCode)
		return empty
	}

	var out conversationList
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		log.Warn("failed to decode conversations", "error", err)
		return empty
	}
	if out.Conversations == nil {
		return empty
	}
	return out.Conversations
}

// statusMessage describes a non-2xx response: the body's error field when
// present, otherwise "HTTP {status}: {status text}".
func statusMessage(resp *http.Response, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}

	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
}

// transportMessage turns a transport-level error into user-facing text.
func transportMessage(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("request timed out after %s", timeout)
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return genericSendFailure
}
