// Package config loads the application configuration from a yaml file with
// environment-variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure. It contains
// settings for the chat front end, the policy store, the content pipeline,
// the debug server, and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// Bot contains the chat front-end configuration
	Bot struct {
		// Token is the Telegram bot API token
		Token string `env:"BOT_TOKEN" yaml:"token"`
		// APIBaseURL overrides the Telegram API base URL; empty uses the public endpoint
		APIBaseURL string `env:"BOT_API_BASE_URL" yaml:"apiBaseURL"`
		// Channels is the allow-list of watched channel IDs; empty watches everything
		Channels []int64 `env:"BOT_CHANNELS" yaml:"channels"`
		// CommandPrefix marks moderator commands
		CommandPrefix string `env:"BOT_COMMAND_PREFIX" env-default:"$" yaml:"commandPrefix"`
		// MessageLifetime is how long command replies stay before self-deleting
		MessageLifetime time.Duration `env:"BOT_MESSAGE_LIFETIME" env-default:"30s" yaml:"messageLifetime"`
		// ConfirmTimeout bounds how long a domain confirmation stays open
		ConfirmTimeout time.Duration `env:"BOT_CONFIRM_TIMEOUT" env-default:"60s" yaml:"confirmTimeout"`
		// PollTimeout is the long-poll timeout against the chat API
		PollTimeout time.Duration `env:"BOT_POLL_TIMEOUT" env-default:"50s" yaml:"pollTimeout"`
	} `yaml:"bot"`

	// Storage contains policy-store configurations
	Storage struct {
		// Backend selects the store implementation: "sqlite" or "memory"
		Backend string `env:"STORAGE_BACKEND" env-default:"sqlite" yaml:"backend"`
		// Path is the sqlite database file
		Path string `env:"STORAGE_PATH" env-default:"paperboy.db" yaml:"path"`
	} `yaml:"storage"`

	// Pipeline contains content pipeline configurations
	Pipeline struct {
		// ArticlesDir is where rendered artifacts are written
		ArticlesDir string `env:"PIPELINE_ARTICLES_DIR" env-default:"articles" yaml:"articlesDir"`

		Fetch struct {
			// UserAgent overrides the HTTP user agent; empty uses a browser-like default
			UserAgent string `env:"PIPELINE_FETCH_USER_AGENT" yaml:"userAgent"`
			// Timeout bounds a single page fetch
			Timeout time.Duration `env:"PIPELINE_FETCH_TIMEOUT" env-default:"30s" yaml:"timeout"`
			// BrowserEndpoint is the playwright server endpoint for the bypass path;
			// empty launches a local headless browser on demand
			BrowserEndpoint string `env:"PIPELINE_FETCH_BROWSER_ENDPOINT" yaml:"browserEndpoint"`
		} `yaml:"fetch"`

		Summarize struct {
			// Mode selects the summarizer: "extractive" or "openai"
			Mode string `env:"PIPELINE_SUMMARIZE_MODE" env-default:"extractive" yaml:"mode"`
			// APIKey authenticates against the OpenAI API (openai mode only)
			APIKey string `env:"PIPELINE_SUMMARIZE_API_KEY" yaml:"apiKey"`
			// Model is the OpenAI chat model (openai mode only)
			Model string `env:"PIPELINE_SUMMARIZE_MODEL" env-default:"gpt-4o-mini" yaml:"model"`
			// Sentences is the summary length in sentences (extractive mode only)
			Sentences int `env:"PIPELINE_SUMMARIZE_SENTENCES" env-default:"7" yaml:"sentences"`
		} `yaml:"summarize"`

		Speech struct {
			// APIKey authenticates against the Google text-to-speech API
			APIKey string `env:"PIPELINE_SPEECH_API_KEY" yaml:"apiKey"`
			// LanguageCode selects the narration language
			LanguageCode string `env:"PIPELINE_SPEECH_LANGUAGE" env-default:"en-GB" yaml:"languageCode"`
			// Voice selects the narration voice
			Voice string `env:"PIPELINE_SPEECH_VOICE" env-default:"en-GB-Wavenet-B" yaml:"voice"`
		} `yaml:"speech"`

		Video struct {
			// FFmpegPath is the ffmpeg binary; empty means "ffmpeg" on PATH
			FFmpegPath string `env:"PIPELINE_VIDEO_FFMPEG_PATH" yaml:"ffmpegPath"`
			// ImagePath is the still image shown for the whole video
			ImagePath string `env:"PIPELINE_VIDEO_IMAGE_PATH" env-default:"cover.png" yaml:"imagePath"`
		} `yaml:"video"`

		Upload struct {
			// MaxAttempts bounds retries of the final chat upload
			MaxAttempts int `env:"PIPELINE_UPLOAD_MAX_ATTEMPTS" env-default:"3" yaml:"maxAttempts"`
			// Delay is the fixed wait between upload attempts
			Delay time.Duration `env:"PIPELINE_UPLOAD_DELAY" env-default:"1s" yaml:"delay"`
		} `yaml:"upload"`
	} `yaml:"pipeline"`

	// Debug contains the operational HTTP server configurations
	Debug struct {
		// Addr is the address and port the debug server listens on
		Addr string `env:"DEBUG_ADDR" env-default:"127.0.0.1:6060" yaml:"addr"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"DEBUG_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
		// ReadTimeout is the maximum duration for reading the entire request
		ReadTimeout time.Duration `env:"DEBUG_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"DEBUG_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"DEBUG_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request
		IdleTimeout time.Duration `env:"DEBUG_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
	} `yaml:"debug"`

	// GracefulShutdownTimeout is the maximum duration to wait for in-flight work during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
