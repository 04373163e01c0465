package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the runtime settings for the wallet client.
type Config struct {
	// APIBaseURL is the wallet backend base URL, including the /api path.
	APIBaseURL string
	// BankBaseURL is the external settlement ("fake bank") base URL.
	BankBaseURL string
	// TokenDBPath is where the bearer token is persisted.
	TokenDBPath string
	LogLevel    string
	Platform    string
}

// resolveHost picks the loopback host for the current platform. An Android
// emulator reaches the host machine through 10.0.2.2 instead of localhost.
func resolveHost(platform string) string {
	switch platform {
	case "android":
		return "10.0.2.2"
	case "web", "ios":
		return "localhost"
	}
	return "localhost"
}

// Load reads configuration from an optional .env file and the environment.
// Explicit WALLET_API_URL / FAKE_BANK_URL values win over the
// platform-derived defaults.
func Load() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// A missing config file is fine, env vars still apply.
	_ = v.ReadInConfig()

	v.SetDefault("PLATFORM", "web")
	v.SetDefault("WALLET_API_PORT", "8080")
	v.SetDefault("FAKE_BANK_PORT", "3000")
	v.SetDefault("TOKEN_DB_PATH", "wallet.db")
	v.SetDefault("LOG_LEVEL", "info")

	platform := v.GetString("PLATFORM")
	host := resolveHost(platform)

	apiURL := v.GetString("WALLET_API_URL")
	if apiURL == "" {
		apiURL = fmt.Sprintf("http://%s:%s/api", host, v.GetString("WALLET_API_PORT"))
	}

	bankURL := v.GetString("FAKE_BANK_URL")
	if bankURL == "" {
		bankURL = fmt.Sprintf("http://%s:%s", host, v.GetString("FAKE_BANK_PORT"))
	}

	return &Config{
		APIBaseURL:  apiURL,
		BankBaseURL: bankURL,
		TokenDBPath: v.GetString("TOKEN_DB_PATH"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Platform:    platform,
	}
}
