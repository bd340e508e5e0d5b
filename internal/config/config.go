// /internal/config/config.go
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds every runtime knob. Behavioral probabilities and staleness
// thresholds are tunable on purpose; defaults match observed behavior.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:":8787"`
	LogPath      string `env:"LOG_PATH"`
	AIProvider   string `env:"AI_PROVIDER" envDefault:"pollinations"`

	// Humanizer probabilities.
	TypoRate          float64 `env:"TYPO_RATE" envDefault:"0.03"`
	ColloquialismRate float64 `env:"COLLOQUIALISM_RATE" envDefault:"0.3"`
	DoubleMessageRate float64 `env:"DOUBLE_MESSAGE_RATE" envDefault:"0.05"`
	ContradictionRate float64 `env:"CONTRADICTION_RATE" envDefault:"0.1"`

	// Emotional state machine and personality drift.
	EmotionPersistence time.Duration `env:"EMOTION_PERSISTENCE" envDefault:"30m"`
	EmotionDecayEvery  time.Duration `env:"EMOTION_DECAY_EVERY" envDefault:"5m"`
	DriftEvery         time.Duration `env:"PERSONALITY_DRIFT_EVERY" envDefault:"1h"`

	// Conversation staleness thresholds.
	MemberPatience   int           `env:"STALE_MEMBER_PATIENCE" envDefault:"15"`
	StrangerPatience int           `env:"STALE_STRANGER_PATIENCE" envDefault:"8"`
	WarningThreshold int           `env:"STALE_WARNING_THRESHOLD" envDefault:"5"`
	RepetitionLimit  int           `env:"STALE_REPETITION_LIMIT" envDefault:"3"`
	TrackerSweepIdle time.Duration `env:"STALE_SWEEP_IDLE" envDefault:"1h"`

	// Special-case response probabilities.
	VulnerabilityRate float64 `env:"VULNERABILITY_RATE" envDefault:"0.02"`
	HotTakeRate       float64 `env:"HOT_TAKE_RATE" envDefault:"0.03"`
}

// New parses the environment into a Config. A missing DISCORD_TOKEN is not
// fatal: the HTTP entrypoint works without the Discord connector.
func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("config parse failed: %v", err)
	}
	return cfg
}
