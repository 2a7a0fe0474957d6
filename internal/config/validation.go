package config

import (
	"fmt"
	"os"
	"slices"
)

var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate checks the configuration for consistency. It is called by Load
// so an invalid configuration never reaches the rest of the application.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.MaxResults < 1 || c.MaxResults > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidMaxResults, c.MaxResults)
	}
	if c.HistoryWindow < 0 || c.HistoryWindow > 50 {
		return fmt.Errorf("%w: must be between 0 and 50, got %d", ErrInvalidHistoryWindow, c.HistoryWindow)
	}

	if c.ChunkSize < 100 {
		return fmt.Errorf("%w: chunk size must be at least 100, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be non-negative and smaller than chunk size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not a valid sslmode", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
