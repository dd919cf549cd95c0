package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file
// in the working directory is loaded first; a missing file is not an
// error.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString(&config.EndpointAddr, "ENDPOINT_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.JWTSecret, "JWT_SECRET")
	setString(&config.TokenSealSecret, "TOKEN_SEAL_SECRET")
	setString(&config.StorageBackend, "STORAGE_BACKEND")
	setString(&config.FSBaseDir, "FS_BASE_DIR")
	setString(&config.FSBaseURL, "FS_BASE_URL")
	setString(&config.S3AccessKey, "S3_ACCESS_KEY")
	setString(&config.S3SecretKey, "S3_SECRET_KEY")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&config.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&config.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&config.WhisperModel, "WHISPER_MODEL")
	setString(&config.FFmpegPath, "FFMPEG_PATH")
	setString(&config.FFprobePath, "FFPROBE_PATH")

	if v, ok := os.LookupEnv("TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
}
