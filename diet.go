package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"horus/nutrition-api/internal/config"
)

/* ─── Request / Response types ───────────────────────────────────────── */

// dietRequest is the optional body for POST /ai/diet. Any field present
// overrides the authenticated user's stored profile for this plan only.
type dietRequest struct {
	Name      *string  `json:"name"`
	Age       *int     `json:"age"       binding:"omitempty,gte=0,lte=130"`
	WeightKG  *float64 `json:"weight_kg" binding:"omitempty,gte=0"`
	HeightCM  *float64 `json:"height_cm" binding:"omitempty,gte=0"`
	Gender    *string  `json:"gender"`
	Level     *string  `json:"level"`
	Objective *string  `json:"objective"`
}

// apply overlays the non-nil request fields onto u.
func (r dietRequest) apply(u *user) {
	if r.Name != nil {
		u.Name = strings.TrimSpace(*r.Name)
	}
	if r.Age != nil {
		u.Age = *r.Age
	}
	if r.WeightKG != nil {
		u.WeightKG = *r.WeightKG
	}
	if r.HeightCM != nil {
		u.HeightCM = *r.HeightCM
	}
	if r.Gender != nil {
		u.Gender = *r.Gender
	}
	if r.Level != nil {
		u.Level = *r.Level
	}
	if r.Objective != nil {
		u.Objective = *r.Objective
	}
}

/* ─── OpenAI prompt constants ────────────────────────────────────────── */

const dietSystemPrompt = `You are a nutritionist. Build a complete one-day diet plan for the person described by the user and return a JSON object with:
- "name" (string, the person's name)
- "sex" (string)
- "age" (integer, years)
- "height" (number, cm)
- "weight" (number, kg)
- "objective" (string, the current objective)
- "meals" (array of objects, each with "time" (string, HH:MM), "name" (string, e.g. "first meal", "second meal") and "foods" (array of strings with quantities))
- "supplements" (array of strings, suggestions suited to the person's sex and objective; may be empty)
- "daily_water_liters" (number)

Ignore any parameter other than the ones provided. Do not add remarks or extra properties.
Return only valid JSON, no explanation.`

// dietUserPromptTemplate is filled with the merged profile.
const dietUserPromptTemplate = `Name: %s
Sex: %s
Age: %d years
Weight: %.1f kg
Height: %.0f cm
Activity level: %s
Objective: %s`

// dietEnergyHintTemplate is appended when the profile yields an energy estimate.
const dietEnergyHintTemplate = `
Estimated TDEE: %d kcal/day. Target intake: %d kcal/day.`

/* ─── OpenAI client ──────────────────────────────────────────────────── */

// completeJSON sends one chat completion in JSON mode and returns the content
// of the first choice. The SDK's own retries are disabled; a failed call is a
// failed request.
func completeJSON(ctx context.Context, cfg config.OpenAIConfig, systemPrompt, userPrompt string) (string, error) {
	if cfg.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(60*time.Second),
	)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

var codeFencePattern = regexp.MustCompile("```\\w*\\n?")

// stripCodeFences removes markdown code fences some models wrap JSON in.
func stripCodeFences(s string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(s, ""))
}

// parseDietPlan validates the model output as a JSON object and returns it
// unchanged for the response.
func parseDietPlan(content string) (json.RawMessage, error) {
	cleaned := stripCodeFences(content)
	if !gjson.Valid(cleaned) || !gjson.Parse(cleaned).IsObject() {
		return nil, errors.New("diet plan is not a JSON object")
	}
	if meals := gjson.Get(cleaned, "meals"); meals.Exists() && !meals.IsArray() {
		return nil, errors.New("diet plan meals is not an array")
	}
	return json.RawMessage(cleaned), nil
}

/* ─── Handler ────────────────────────────────────────────────────────── */

// createDietPlan handles POST /ai/diet (alias POST /ai/create).
// Merges the request body over the stored profile, asks the model for a diet
// plan and returns it as {"data": plan}.
func (h *Handler) createDietPlan(c *gin.Context) {
	// The body is optional; an empty one just means "use my stored profile".
	var req dietRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apiError(c, http.StatusBadRequest, validationMessage(err))
		return
	}
	if msg := validateEnums(req.Gender, req.Level, req.Objective); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	req.apply(&profile)

	if profile.Name == "" || profile.Gender == "" || profile.Objective == "" ||
		profile.Age <= 0 || profile.WeightKG <= 0 || profile.HeightCM <= 0 {
		apiError(c, http.StatusBadRequest, "profile incomplete: name, gender, age, weight_kg, height_cm and objective are required")
		return
	}

	content, err := completeJSON(c.Request.Context(), h.cfg.OpenAI, dietSystemPrompt, buildDietPrompt(&profile))
	if err != nil {
		log.Printf("[diet] OpenAI error: %v", err)
		apiError(c, http.StatusInternalServerError, "ai request failed")
		return
	}

	plan, err := parseDietPlan(content)
	if err != nil {
		log.Printf("[diet] Failed to parse OpenAI response: %v", err)
		apiError(c, http.StatusInternalServerError, "ai request failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

// profileLoader reads a user's stored profile.
type profileLoader interface {
	LoadProfile(ctx context.Context, userID int) (user, error)
}

// pgProfiles loads profiles from the users table.
type pgProfiles struct {
	db pgxQuerier
}

func (p pgProfiles) LoadProfile(ctx context.Context, userID int) (user, error) {
	return queryOne[user](p.db, ctx, "SELECT * FROM users WHERE id = @id", pgx.NamedArgs{"id": userID})
}

// loadProfile reads the authenticated user's stored profile, answering 404/500
// itself on failure.
func (h *Handler) loadProfile(c *gin.Context) (user, bool) {
	u, err := h.profiles.LoadProfile(c, c.GetInt("user_id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "user not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch user")
		}
		return user{}, false
	}
	return u, true
}

// buildDietPrompt renders the merged profile, plus the energy estimate when
// the profile is complete enough to compute one.
func buildDietPrompt(u *user) string {
	level := u.Level
	if level == "" {
		level = "unknown"
	}
	prompt := fmt.Sprintf(dietUserPromptTemplate,
		u.Name, u.Gender, u.Age, u.WeightKG, u.HeightCM, level, u.Objective)
	if _, tdee, budget, ok := computeEnergy(u); ok {
		prompt += fmt.Sprintf(dietEnergyHintTemplate, tdee, budget)
	}
	return prompt
}
