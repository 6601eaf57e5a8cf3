// Package assistant is the language service used by the orchestrator. It
// composes prompts, keeps the chat history of one session and talks to an
// inference engine.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kalambet/aura/internal/booking"
	"github.com/kalambet/aura/internal/composer"
	"github.com/kalambet/aura/internal/engine"
	"github.com/kalambet/aura/internal/sigil"
)

const (
	historyLimit   = 20
	maxSuggestions = 3
)

// Config selects models and limits.
type Config struct {
	Name string
	// ChatModel answers the user; FastModel extracts actions and tasks.
	ChatModel     string
	FastModel     string
	ImageModel    string
	ContextTokens int
}

// Assistant implements the language service for one session.
type Assistant struct {
	engine   engine.Engine
	files    *Files
	composer *composer.Composer
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	history []engine.Message
}

// New creates an Assistant drawing file context from files.
func New(eng engine.Engine, files *Files, cfg Config) *Assistant {
	if cfg.FastModel == "" {
		cfg.FastModel = cfg.ChatModel
	}
	if files == nil {
		files = NewFiles()
	}
	return &Assistant{
		engine:   eng,
		files:    files,
		composer: composer.New(cfg.ContextTokens),
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// Files returns the registry the assistant reads context from.
func (a *Assistant) Files() *Files {
	return a.files
}

// Complete answers text in the context of the session history and the
// uploaded files. The raw reply may be a marker the caller must classify.
func (a *Assistant) Complete(ctx context.Context, text string) (string, error) {
	system := a.composer.Compose(systemPrompt(a.cfg.Name), a.files.documents())

	a.mu.Lock()
	msgs := make([]engine.Message, 0, len(a.history)+2)
	msgs = append(msgs, engine.Message{Role: "system", Content: system})
	msgs = append(msgs, a.history...)
	a.mu.Unlock()
	msgs = append(msgs, engine.Message{Role: "user", Content: text})

	reply, err := a.engine.Chat(ctx, a.cfg.ChatModel, msgs, nil)
	if err != nil {
		return "", &AdapterError{Op: "complete", Err: err}
	}

	if sigil.Classify(reply).Kind == sigil.Text {
		a.Remember(text, reply)
	}
	return reply, nil
}

// Remember records one exchange in the chat history. Replies that were
// action markers are recorded by the caller with the text the user saw.
func (a *Assistant) Remember(utterance, shown string) {
	a.remember(engine.Message{Role: "user", Content: utterance}, engine.Message{Role: "assistant", Content: shown})
}

func (a *Assistant) remember(msgs ...engine.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, msgs...)
	if over := len(a.history) - historyLimit; over > 0 {
		a.history = append([]engine.Message(nil), a.history[over:]...)
	}
}

type actionResponse struct {
	Domain     string         `json:"domain"`
	Parameters map[string]any `json:"parameters"`
}

// AgenticAction extracts a structured booking action from text. It returns
// nil when the model finds no booking in the text.
func (a *Assistant) AgenticAction(ctx context.Context, text string) (*booking.Action, error) {
	raw, err := a.engine.Chat(ctx, a.cfg.FastModel, []engine.Message{
		{Role: "system", Content: actionPrompt},
		{Role: "user", Content: text},
	}, actionSchema())
	if err != nil {
		return nil, &AdapterError{Op: "agentic action", Err: err}
	}

	var resp actionResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return nil, &AdapterError{Op: "agentic action", Err: fmt.Errorf("decoding action: %w", err)}
	}

	d := booking.Domain(strings.ToLower(strings.TrimSpace(resp.Domain)))
	if d == "" || d == noDomain {
		return nil, nil
	}
	if !d.Valid() {
		a.logger.Warn("model returned unknown booking domain", "domain", resp.Domain)
		return nil, nil
	}

	action := &booking.Action{Domain: d, Params: make(map[string]string, len(resp.Parameters))}
	for k, v := range resp.Parameters {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			action.Params[k] = s
		}
	}
	return action, nil
}

// SuggestTasks derives up to three follow-up task titles from text.
func (a *Assistant) SuggestTasks(ctx context.Context, text string) ([]string, error) {
	raw, err := a.engine.Chat(ctx, a.cfg.FastModel, []engine.Message{
		{Role: "system", Content: fmt.Sprintf(tasksPrompt, maxSuggestions)},
		{Role: "user", Content: text},
	}, tasksSchema())
	if err != nil {
		return nil, &AdapterError{Op: "suggest tasks", Err: err}
	}

	var resp struct {
		Tasks []string `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return nil, &AdapterError{Op: "suggest tasks", Err: fmt.Errorf("decoding tasks: %w", err)}
	}

	out := make([]string, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}

// GenerateImage renders prompt and returns the image URL.
func (a *Assistant) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &GenerationError{Prompt: prompt, Err: errors.New("empty prompt")}
	}
	url, err := a.engine.GenerateImage(ctx, a.cfg.ImageModel, prompt)
	if err != nil {
		return "", &GenerationError{Prompt: prompt, Err: err}
	}
	return url, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
