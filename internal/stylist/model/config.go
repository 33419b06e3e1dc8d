package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"30m"`
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"10"`
	}
}

type GuardrailConfig struct {
	MaxInputLength  int  `envconfig:"GUARDRAIL_MAX_INPUT_LENGTH" default:"4000"`
	MaxOutputLength int  `envconfig:"GUARDRAIL_MAX_OUTPUT_LENGTH" default:"8000"`
	PatternProvider bool `envconfig:"GUARDRAIL_PATTERN_PROVIDER" default:"true"`
	ModelProvider   bool `envconfig:"GUARDRAIL_MODEL_PROVIDER" default:"false"`
}

type RecommenderConfig struct {
	MaxIterations int `envconfig:"RECOMMENDER_MAX_ITERATIONS" default:"3"`
	MinResults    int `envconfig:"RECOMMENDER_MIN_RESULTS" default:"3"`
	SearchLimit   int `envconfig:"RECOMMENDER_SEARCH_LIMIT" default:"10"`
	PoolLimit     int `envconfig:"RECOMMENDER_POOL_LIMIT" default:"200"`
}

type AnalysisModelConfig struct {
	Model       string  `envconfig:"ANALYSIS_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ANALYSIS_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ANALYSIS_TEMPERATURE" default:"0.1"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type StylistPromptConfig struct {
	BoutiqueName string `envconfig:"PROMPT_BOUTIQUE_NAME" default:"AesthetIQ"`
	Persona      string `envconfig:"PROMPT_PERSONA" default:"warm, knowledgeable personal stylist"`
}

// TimeoutConfig bounds every external collaborator call, in seconds.
// A timed-out call is a recoverable failure for its stage, never a crash.
type TimeoutConfig struct {
	Model     int `envconfig:"TIMEOUT_MODEL" default:"30"`
	Embedding int `envconfig:"TIMEOUT_EMBEDDING" default:"10"`
	Store     int `envconfig:"TIMEOUT_STORE" default:"10"`
	Profile   int `envconfig:"TIMEOUT_PROFILE" default:"5"`
	Guardrail int `envconfig:"TIMEOUT_GUARDRAIL" default:"10"`
}

func (t TimeoutConfig) ModelDuration() time.Duration     { return seconds(t.Model, 30) }
func (t TimeoutConfig) EmbeddingDuration() time.Duration { return seconds(t.Embedding, 10) }
func (t TimeoutConfig) StoreDuration() time.Duration     { return seconds(t.Store, 10) }
func (t TimeoutConfig) ProfileDuration() time.Duration   { return seconds(t.Profile, 5) }
func (t TimeoutConfig) GuardrailDuration() time.Duration { return seconds(t.Guardrail, 10) }

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
