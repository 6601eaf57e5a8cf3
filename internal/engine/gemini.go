package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiEngine serves chat and image generation from the Gemini API.
type GeminiEngine struct {
	client *genai.Client
}

// NewGeminiEngine creates a GeminiEngine authenticated with apiKey.
func NewGeminiEngine(ctx context.Context, apiKey string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiEngine{client: client}, nil
}

// Chat maps system messages to the system instruction and the rest to
// user/model contents.
func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	system, contents := toGeminiContents(messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if jsonSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGeminiSchema(jsonSchema)
	}

	res, err := e.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}

// GenerateImage returns the first generated image as a data URL.
func (e *GeminiEngine) GenerateImage(ctx context.Context, model, prompt string) (string, error) {
	res, err := e.client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate images: %w", err)
	}
	if len(res.GeneratedImages) == 0 || res.GeneratedImages[0].Image == nil {
		return "", errors.New("gemini returned no image")
	}
	img := res.GeneratedImages[0].Image
	if img.GCSURI != "" {
		return img.GCSURI, nil
	}
	if len(img.ImageBytes) == 0 {
		return "", errors.New("gemini returned an empty image")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.ImageBytes), nil
}

// IsRunning probes the API by listing a single model.
func (e *GeminiEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	return err == nil
}

// HasModel reports whether the API knows the model.
func (e *GeminiEngine) HasModel(ctx context.Context, name string) bool {
	_, err := e.client.Models.Get(ctx, name, nil)
	return err == nil
}

// PullModel fails: hosted models cannot be downloaded.
func (e *GeminiEngine) PullModel(_ context.Context, name string, _ func(PullProgress)) error {
	return fmt.Errorf("gemini model %s is not available to this API key", name)
}

func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func toGeminiSchema(s *Schema) *genai.Schema {
	out := &genai.Schema{
		Type:     genaiType(s.Type),
		Required: s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, p := range s.Properties {
			out.Properties[k] = toGeminiProperty(p)
		}
	}
	return out
}

func toGeminiProperty(p SchemaProperty) *genai.Schema {
	out := &genai.Schema{
		Type:        genaiType(p.Type),
		Description: p.Description,
		Enum:        p.Enum,
	}
	if p.Items != nil {
		out.Items = toGeminiProperty(*p.Items)
	}
	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for k, sub := range p.Properties {
			out.Properties[k] = toGeminiProperty(sub)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "boolean":
		return genai.TypeBoolean
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	}
	return genai.TypeString
}
