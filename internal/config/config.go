package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	LLMAPIKey         string `env:"LLM_API_KEY"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"gpt-4o"`
	LLMEmbeddingModel string `env:"LLM_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Analizador de razonamiento: "llm" usa el modo semantico profundo cuando
	// hay cliente configurado; cualquier otro valor fuerza el modo heuristico.
	ReasoningAnalyzerMode string `env:"REASONING_ANALYZER_MODE" envDefault:"heuristic"`

	// Umbrales del motor; los defaults vienen del modelo original.
	MisconceptionConfidenceFloor float64 `env:"MISCONCEPTION_CONFIDENCE_FLOOR" envDefault:"0.6"`
	ResolutionStreakThreshold    int     `env:"RESOLUTION_STREAK_THRESHOLD" envDefault:"3"`
	PromotionSimilarityThreshold float64 `env:"PROMOTION_SIMILARITY_THRESHOLD" envDefault:"0.85"`
	PromotionFrequencyThreshold  int     `env:"PROMOTION_FREQUENCY_THRESHOLD" envDefault:"3"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
