package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/openplaud/plaudsync/internal/flagx"
	"github.com/openplaud/plaudsync/internal/timex"
)

// JsonConfig is the JSON-file DTO. Duration fields accept both strings
// such as "24h" and integer nanoseconds; after unmarshalling the values
// are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	JWTSecret             string         `json:"jwt_secret"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	TokenSealSecret       string         `json:"token_seal_secret"`
	StorageBackend        string         `json:"storage_backend"`
	FSBaseDir             string         `json:"fs_base_dir"`
	FSBaseURL             string         `json:"fs_base_url"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	OpenAIAPIKey          string         `json:"openai_api_key"`
	OpenAIBaseURL         string         `json:"openai_base_url"`
	WhisperModel          string         `json:"whisper_model"`
	FFmpegPath            string         `json:"ffmpeg_path"`
	FFprobePath           string         `json:"ffprobe_path"`
}

// parseJson overlays configuration values from a JSON file named by the
// -c/-config flags. If no flag is given, nothing is loaded. An unreadable
// or invalid file panics: a half-applied config is worse than no start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	overlay(&config.EndpointAddr, c.EndpointAddr)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.JWTSecret, c.JWTSecret)
	overlay(&config.TokenSealSecret, c.TokenSealSecret)
	overlay(&config.StorageBackend, c.StorageBackend)
	overlay(&config.FSBaseDir, c.FSBaseDir)
	overlay(&config.FSBaseURL, c.FSBaseURL)
	overlay(&config.S3AccessKey, c.S3AccessKey)
	overlay(&config.S3SecretKey, c.S3SecretKey)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.OpenAIAPIKey, c.OpenAIAPIKey)
	overlay(&config.OpenAIBaseURL, c.OpenAIBaseURL)
	overlay(&config.WhisperModel, c.WhisperModel)
	overlay(&config.FFmpegPath, c.FFmpegPath)
	overlay(&config.FFprobePath, c.FFprobePath)

	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	}
}
