package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Secrets holds credentials that are only ever read from the environment.
type Secrets struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN,notEmpty"`
	YandexAPIKey  string `env:"YANDEX_API_KEY,notEmpty"`
}

// LoadSecrets reads the required secrets from the environment.
// A missing secret is a boot-time fatal for the caller.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("config: TELEGRAM_BOT_TOKEN and YANDEX_API_KEY must be set: %w", err)
	}
	return s, nil
}
