package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultScriptModel    = "gpt-4o-mini"
	defaultScriptDuration = 30.0
	secondsPerScene       = 5.0
	minScenes             = 3
	maxScenes             = 12
)

// ScriptService writes short-form video scripts with an OpenAI chat model.
type ScriptService struct {
	client *openai.Client
	model  string
}

func NewScriptService(apiKey, model string) *ScriptService {
	return newScriptService(openai.DefaultConfig(apiKey), model)
}

func newScriptService(cfg openai.ClientConfig, model string) *ScriptService {
	if model == "" {
		model = defaultScriptModel
	}
	return &ScriptService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// ScriptScene is one beat of a generated script
type ScriptScene struct {
	SceneNumber  int    `json:"scene_number"`
	Action       string `json:"action"`
	Dialogue     string `json:"dialogue"`
	VoiceOver    string `json:"voice_over"`
	VisualPrompt string `json:"visual_prompt"`
}

// Script is the complete generated story
type Script struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Intro       string        `json:"intro"`
	Scenes      []ScriptScene `json:"scenes"`
}

// SceneCount returns how many scenes a script of the given length should have.
func SceneCount(targetSeconds float64) int {
	if targetSeconds <= 0 {
		targetSeconds = defaultScriptDuration
	}
	n := int(math.Round(targetSeconds / secondsPerScene))
	if n < minScenes {
		return minScenes
	}
	if n > maxScenes {
		return maxScenes
	}
	return n
}

// GenerateScript asks the model for a script in JSON mode and validates it.
func (s *ScriptService) GenerateScript(ctx context.Context, prompt, genre, style string, targetSeconds float64) (*Script, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if targetSeconds <= 0 {
		targetSeconds = defaultScriptDuration
	}
	scenes := SceneCount(targetSeconds)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildScriptSystemPrompt(scenes, targetSeconds),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScriptUserPrompt(prompt, genre, style, targetSeconds),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	raw := resp.Choices[0].Message.Content
	script, err := parseScript(raw)
	if err != nil {
		log.WithField("raw", truncateString(raw, 2000)).Warnf("script rejected: %v", err)
		return nil, err
	}

	log.Infof("script generated: %d scenes, title=%q", len(script.Scenes), script.Title)
	return script, nil
}

func parseScript(raw string) (*Script, error) {
	var script Script
	if err := json.Unmarshal([]byte(raw), &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(script.Scenes) == 0 {
		return nil, fmt.Errorf("script has no scenes")
	}

	for i := range script.Scenes {
		sc := &script.Scenes[i]
		// the model is not reliable about numbering
		sc.SceneNumber = i + 1
		sc.VisualPrompt = strings.TrimSpace(sc.VisualPrompt)
		if sc.VisualPrompt == "" {
			return nil, fmt.Errorf("scene %d missing visual_prompt", i+1)
		}
		if strings.TrimSpace(sc.Dialogue) == "" && strings.TrimSpace(sc.VoiceOver) == "" {
			return nil, fmt.Errorf("scene %d has no dialogue or voice_over", i+1)
		}
	}
	if script.Title == "" {
		script.Title = "Untitled story"
	}
	return &script, nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func buildScriptSystemPrompt(scenes int, targetSeconds float64) string {
	return fmt.Sprintf(`You are a screenwriter for short vertical videos (9:16, TikTok/Reels/Shorts).
Write a story that takes about %.0f seconds to narrate, split into exactly %d scenes.

Each scene is shown as one still image over a looping background while the narration plays, so:
- dialogue: what the narrator says during the scene, 1-2 short spoken sentences
- voice_over: optional alternative narration line; leave empty when dialogue covers it
- action: one sentence describing what happens in the scene
- visual_prompt: a self-contained image generation prompt for the scene. Describe subject, setting, lighting and mood. Never refer to other scenes.

Open with a hook in scene 1 and land the ending in the last scene.

Respond with a JSON object:
{
  "title": "short title",
  "description": "one sentence summary",
  "intro": "one hook sentence",
  "scenes": [
    {"scene_number": 1, "action": "...", "dialogue": "...", "voice_over": "", "visual_prompt": "..."}
  ]
}`, targetSeconds, scenes)
}

func buildScriptUserPrompt(prompt, genre, style string, targetSeconds float64) string {
	out := fmt.Sprintf("Story idea: %q\nTarget duration: %.0f seconds", prompt, targetSeconds)

	var extras []string
	if genre != "" {
		extras = append(extras, "Genre: "+genre)
	}
	if style != "" {
		extras = append(extras, "Visual style: "+style+" (apply it to every visual_prompt)")
	}
	if len(extras) > 0 {
		out += "\n\nCustomization:\n- " + strings.Join(extras, "\n- ")
	}
	return out
}
