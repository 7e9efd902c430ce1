package model

// ================ Config ================
type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.4"`
	// ThinkingBudget of 0 disables thinking.
	ThinkingBudget int32 `envconfig:"AGENT_THINKING_BUDGET" default:"0"`
}

type ConversationConfig struct {
	TTL           string `envconfig:"CONVERSATION_TTL" default:"24h"`
	// MaxTurns of 0 passes the full history to the model.
	MaxTurns      int    `envconfig:"CONVERSATION_MAX_TURNS" default:"0"`
	MaxIterations int    `envconfig:"CONVERSATION_MAX_ITERATIONS" default:"10"`
}

type PromptConfig struct {
	RestaurantName string `envconfig:"PROMPT_RESTAURANT_NAME" default:"La Taberna del Río"`
	AssistantName  string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Robino"`
}

type PipelineConfig struct {
	TopK int `envconfig:"PIPELINE_TOP_K" default:"5"`
}

type KnowledgeConfig struct {
	MenuSearchTopK int `envconfig:"MENU_SEARCH_TOP_K" default:"3"`
}

type PersistenceConfig struct {
	LocalLog string `envconfig:"PERSISTENCE_LOCAL_LOG" default:"conversaciones_robino.log"`
}

type TracingConfig struct {
	File        string `envconfig:"TRACE_FILE"`
	ServiceName string `envconfig:"TRACE_SERVICE_NAME" default:"robino"`
}

type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR"`
}
