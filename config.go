package mealrecal

import "time"

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.4"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type GeneratorConfig struct {
	Backend            string        `env:"GENERATOR_BACKEND,default=bedrock"`
	BaseOllamaEndpoint string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	MaxAttempts        int           `env:"GENERATOR_MAX_ATTEMPTS,default=3"`
	CallTimeout        time.Duration `env:"GENERATOR_CALL_TIMEOUT,default=30s"`
	MaxBackoff         time.Duration `env:"GENERATOR_MAX_BACKOFF,default=60s"`
}

type StoreConfig struct {
	Backend          string `env:"STORE_BACKEND,default=file"`
	FilePath         string `env:"STORE_FILE_PATH,default=artifacts/documents.json"`
	DynamoTable      string `env:"STORE_DYNAMO_TABLE,default=mealrecal-documents"`
	DynamoOwnerIndex string `env:"STORE_DYNAMO_OWNER_INDEX,default=owner_id-created_at-index"`
	PostgresDSN      string `env:"STORE_POSTGRES_DSN"`
}

type PlannerConfig struct {
	LunchFrom   int           `env:"PLANNER_LUNCH_FROM,default=11"`
	DinnerFrom  int           `env:"PLANNER_DINNER_FROM,default=15"`
	SnackFrom   int           `env:"PLANNER_SNACK_FROM,default=19"`
	CloseFrom   int           `env:"PLANNER_CLOSE_FROM,default=22"`
	RecentLimit int           `env:"PLANNER_RECENT_LIMIT,default=200"`
	Lookback    time.Duration `env:"PLANNER_LOOKBACK,default=72h"`
}

type LexiconConfig struct {
	Path     string `env:"LEXICON_PATH"`
	S3Bucket string `env:"LEXICON_S3_BUCKET"`
	S3Key    string `env:"LEXICON_S3_KEY,default=lexicon.yaml"`
}

type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#meal-plans"`
}
