package natives

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// Engine is the pluggable AI backend the module dispatches to. SPEC_FULL
// models the original's provider-pluggable std/ai/providers/mod.rs as this
// interface with a single stdlib net/http-based default — no AI SDK
// appears anywhere in the retrieved example pack, so there is nothing
// further to wire beyond the HTTP client itself (see SPEC_FULL §2).
type Engine interface {
	Complete(prompt string) (string, error)
}

// HTTPEngine is the default Engine: a minimal OpenAI-compatible chat
// completion POST, reading its API key from EGOVM_AI_API_KEY and its
// endpoint from EGOVM_AI_ENDPOINT.
type HTTPEngine struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
}

func NewHTTPEngine() *HTTPEngine {
	return &HTTPEngine{
		Client:   &http.Client{Timeout: 30 * time.Second},
		Endpoint: os.Getenv("EGOVM_AI_ENDPOINT"),
		APIKey:   os.Getenv("EGOVM_AI_API_KEY"),
	}
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *HTTPEngine) Complete(prompt string) (string, error) {
	if e.Endpoint == "" {
		return "", errors.New("EGOVM_AI_ENDPOINT is not set")
	}
	body, err := json.Marshal(chatRequest{Messages: []chatMessage{{Role: "user", Content: prompt}}})
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequest(http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= 300 {
		return "", errors.Errorf("ai engine returned status %d: %s", resp.StatusCode, string(raw))
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("ai engine returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// engineSlot holds the module's active engine. nil until ai.setEngine is
// called, per the AI.EngineNotSet error kind (§2 of SPEC_FULL).
var engineSlot Engine

// AI exposes the ai.fetch/ai.setEngine native functions.
func AI(vm HeapAccess) (string, []Field) {
	return "ai", []Field{
		{Name: "fetch", Object: function(vm, "ai.fetch", []string{"prompt"}, aiFetch)},
		{Name: "setEngine", Object: function(vm, "ai.setEngine", []string{"engine"}, aiSetEngine)},
	}
}

func aiFetch(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	prompt, ok := oneString(vm, args)
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "ai.fetch(prompt)")
	}
	if engineSlot == nil {
		return value.Nothing(), vmerrors.New(vmerrors.AIEngineNotSet, "call ai.setEngine first")
	}
	out, err := engineSlot.Complete(prompt)
	if err != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.AIFetchError, prompt, err)
	}
	return HeapString(vm, out), nil
}

func aiSetEngine(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	name, ok := oneString(vm, args)
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "ai.setEngine(name)")
	}
	switch name {
	case "http":
		engineSlot = NewHTTPEngine()
		return value.Nothing(), nil
	default:
		return value.Nothing(), vmerrors.New(vmerrors.AIEngineNotImplemented, name)
	}
}
