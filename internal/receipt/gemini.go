package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"spendly/internal/cache"
	"spendly/internal/log"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// KeySource resolves the API key to use for a user.
type KeySource interface {
	Key(userID string) (string, bool)
}

// GeminiExtractor implements Extractor on the Gemini API.
type GeminiExtractor struct {
	keys    KeySource
	model   string
	clients *cache.LRUCache[*genai.Client]
	logger  *log.Logger
}

func NewGeminiExtractor(keys KeySource, model string, logger *log.Logger) *GeminiExtractor {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiExtractor{
		keys:    keys,
		model:   model,
		clients: cache.NewLRUCache[*genai.Client](64, time.Hour),
		logger:  logger.WithComponent(log.ComponentReceipt),
	}
}

// Clients exposes the client cache so it can be registered for cleanup.
func (g *GeminiExtractor) Clients() *cache.LRUCache[*genai.Client] {
	return g.clients
}

func (g *GeminiExtractor) Extract(ctx context.Context, req Request) (string, error) {
	key, ok := g.keys.Key(req.UserID)
	if !ok {
		return "", fmt.Errorf("%w: no key selected", ErrUnauthorized)
	}
	client, err := g.client(ctx, key)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType),
		genai.NewPartFromText(req.Instruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text := resp.Text()
	g.logger.DebugContext(ctx, "Gemini extraction returned",
		log.FieldUserID, req.UserID,
		"model", g.model,
		"bytes", len(text))
	return text, nil
}

func (g *GeminiExtractor) client(ctx context.Context, key string) (*genai.Client, error) {
	sum := sha256.Sum256([]byte(key))
	id := hex.EncodeToString(sum[:])
	if c, ok := g.clients.Get(id); ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.clients.Set(id, c)
	return c, nil
}

// classifyGeminiError wraps authorization failures in ErrUnauthorized.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isAuthFailure(apiErr.Code, apiErr.Status, apiErr.Message) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("gemini generate content: %w", err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		if isAuthFailure(apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("gemini generate content: %w", err)
}

func isAuthFailure(code int, status, message string) bool {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return true
	}
	switch strings.ToUpper(status) {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "api key not valid") ||
		strings.Contains(m, "api_key_invalid") ||
		strings.Contains(m, "requested entity was not found")
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
	}
	return out
}
