// Package responder generates the reply to a conversational customer message,
// using the completion backend when available and the fallback responder otherwise.
package responder

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/ShopChat/internal/fallback"
	"github.com/BTreeMap/ShopChat/internal/genai"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/prompt"
	"github.com/BTreeMap/ShopChat/internal/store"
)

// Completer is the completion backend used by Generator.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, prompt string) genai.Result
}

// FallbackFunc produces a reply without the completion backend.
type FallbackFunc func(text string) string

// Generator builds the prompt from store data, calls the completer once and
// degrades to the fallback responder on any failure.
type Generator struct {
	store     store.Store
	completer Completer
	fallback  FallbackFunc
}

// Option configures a Generator.
type Option func(*Generator)

// WithFallback replaces the default keyword fallback.
func WithFallback(fn FallbackFunc) Option {
	return func(g *Generator) {
		if fn != nil {
			g.fallback = fn
		}
	}
}

// NewGenerator creates a Generator. completer may be nil, in which case every
// reply comes from the fallback.
func NewGenerator(st store.Store, completer Completer, opts ...Option) *Generator {
	g := &Generator{store: st, completer: completer, fallback: fallback.Respond}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AIConfigured reports whether replies can come from the completion backend.
func (g *Generator) AIConfigured() bool {
	return g.completer != nil && g.completer.Configured()
}

// Generate returns the reply for userText. It never returns "". Successful AI
// replies are appended to sender's history when sender is non-empty.
func (g *Generator) Generate(ctx context.Context, userText, sender string) string {
	if !g.AIConfigured() {
		slog.Debug("Generator.Generate: completion backend not configured, using fallback", "sender", sender)
		return g.fallback(userText)
	}

	fullPrompt := prompt.ComposePrompt(g.buildContext(), userText)
	res := g.completer.Complete(ctx, fullPrompt)
	if !res.OK || res.Text == "" {
		slog.Warn("Generator.Generate: completion failed, using fallback",
			"sender", sender, "reason", res.Reason, "status", res.StatusCode, "error", res.Err)
		return g.fallback(userText)
	}

	if sender != "" && g.store != nil {
		rec := models.ConversationRecord{Sender: sender, Message: userText, Response: res.Text}
		if err := g.store.AppendConversation(rec); err != nil {
			slog.Error("Generator.Generate: failed to persist conversation", "sender", sender, "error", err)
		}
	}
	return res.Text
}

// buildContext renders the prompt context from whatever store data can be read.
func (g *Generator) buildContext() string {
	if g.store == nil {
		return prompt.BuildContext(nil, nil)
	}
	profile, err := g.store.GetStoreProfile()
	if err != nil {
		slog.Warn("Generator.buildContext: store profile unavailable, using defaults", "error", err)
		profile = nil
	}
	products, err := store.FirstProducts(g.store, prompt.MaxContextProducts)
	if err != nil {
		slog.Warn("Generator.buildContext: catalog unavailable", "error", err)
		products = nil
	}
	return prompt.BuildContext(profile, products)
}
