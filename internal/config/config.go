package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr   string       `json:"addr"`
	Store  StoreConfig  `json:"store"`
	Images ImagesConfig `json:"images"`
	Clerk  ClerkConfig  `json:"clerk"`
	Logs   LogsConfig   `json:"logs"`
	Mocks  MocksConfig  `json:"mocks"`
}

// StoreConfig selects the document-store backend: Cosmos when an endpoint is
// configured, files when a data directory is, memory otherwise.
type StoreConfig struct {
	CosmosEndpoint  string `json:"cosmos_endpoint"`
	CosmosKey       string `json:"cosmos_key"`
	CosmosDatabase  string `json:"cosmos_database"`
	CosmosContainer string `json:"cosmos_container"`
	DataDir         string `json:"data_dir"`
}

type ImagesConfig struct {
	AccountName string `json:"account_name"`
	AccountKey  string `json:"account_key"`
	Container   string `json:"container"`
	Dir         string `json:"dir"`
}

type ClerkConfig struct {
	SecretKey string `json:"secret_key"`
}

func (c ClerkConfig) Enabled() bool {
	return c.SecretKey != ""
}

type LogsConfig struct {
	AccountName string `json:"account_name"`
	AccountKey  string `json:"account_key"`
	Container   string `json:"container"`
	BlobName    string `json:"blob_name"`
}

func (c LogsConfig) Enabled() bool {
	return c.AccountName != "" && c.AccountKey != "" && c.Container != ""
}

// MocksConfig turns on the offline mode used by local development and tests:
// cookie auth instead of clerk, in-memory store unless overridden.
type MocksConfig struct {
	Enable bool   `json:"enable"`
	UserID string `json:"user_id"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Addr: getEnvOrDefault("MEALMATE_ADDR", ":8080"),
		Store: StoreConfig{
			CosmosEndpoint:  os.Getenv("AZURE_COSMOS_ENDPOINT"),
			CosmosKey:       os.Getenv("AZURE_COSMOS_KEY"),
			CosmosDatabase:  getEnvOrDefault("AZURE_COSMOS_DATABASE", "mealmate"),
			CosmosContainer: getEnvOrDefault("AZURE_COSMOS_CONTAINER", "documents"),
			DataDir:         os.Getenv("MEALMATE_DATA_DIR"),
		},
		Images: ImagesConfig{
			AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			Container:   getEnvOrDefault("MEALMATE_IMAGE_CONTAINER", "recipe-images"),
			Dir:         getEnvOrDefault("MEALMATE_IMAGE_DIR", "images"),
		},
		Clerk: ClerkConfig{
			SecretKey: os.Getenv("CLERK_SECRET_KEY"),
		},
		Logs: LogsConfig{
			AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			Container:   os.Getenv("MEALMATE_LOG_CONTAINER"),
			BlobName:    os.Getenv("MEALMATE_LOG_BLOB"),
		},
		Mocks: MocksConfig{
			Enable: getEnvBool("MEALMATE_MOCKS"),
			UserID: getEnvOrDefault("MEALMATE_MOCK_USER", "local-user"),
		},
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
