package textgen

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

	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/turn"
)

const (
	describeTemperature = 0.8
	discussTemperature  = 0.8
	voteTemperature     = 0.1
	guessTemperature    = 0.3
)

// discussSystem is the system message sent with every discussion prompt.
const discussSystem = "Discussion participant"

var ErrEmptyCompletion = errors.New("completion has no choices")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat talks to an OpenAI-compatible /chat/completions endpoint.
type Chat struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	rnd     game.Random
}

func NewChat(cfg config.TextGenConfig, rnd game.Random) *Chat {
	if rnd == nil {
		rnd = game.NewRandom(0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chat{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		rnd:     rnd,
	}
}

func (c *Chat) Describe(ctx context.Context, req turn.DescribeRequest) (string, error) {
	system, user := describePrompt(req)
	return c.complete(ctx, systemUser(system, user), describeTemperature)
}

func (c *Chat) Discuss(ctx context.Context, req turn.DiscussRequest) (string, error) {
	prompt := discussPrompt(c.rnd, req)
	return c.complete(ctx, systemUser(discussSystem, prompt), discussTemperature)
}

func (c *Chat) Vote(ctx context.Context, req turn.VoteRequest) (string, error) {
	reply, err := c.complete(ctx, []chatMessage{{Role: "user", Content: votePrompt(req)}}, voteTemperature)
	if err != nil {
		return "", err
	}
	name, err := ParseVote(reply, req.Candidates)
	if err != nil {
		return "", err
	}
	logger.Log.Debugf("Vote by %s parsed %q -> %s", req.Voter, reply, name)
	return name, nil
}

func (c *Chat) FinalGuess(ctx context.Context, req turn.GuessRequest) (string, error) {
	system, user := guessPrompt(req)
	return c.complete(ctx, systemUser(system, user), guessTemperature)
}

func systemUser(system, user string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func (c *Chat) complete(ctx context.Context, messages []chatMessage, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: temperature})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat completion: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("chat completion: status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
