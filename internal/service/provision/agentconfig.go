package provision

import (
	"encoding/json"
	"fmt"

	"github.com/f-o-x11/openclaw-deployer/internal/domain"
)

// ModelConfig carries the model-endpoint credentials injected into every
// agent config document.
type ModelConfig struct {
	Endpoint string
	APIKey   string
}

type agentConfig struct {
	Agent    agentSection    `json:"agent"`
	Gateway  gatewaySection  `json:"gateway"`
	Channels channelsSection `json:"channels"`
	Model    modelSection    `json:"model"`
}

type agentSection struct {
	Name                 string   `json:"name"`
	SystemPrompt         string   `json:"system_prompt"`
	PersonalityTraits    []string `json:"personality_traits"`
	BehavioralGuidelines string   `json:"behavioral_guidelines"`
}

type gatewaySection struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type channelsSection struct {
	Webhook  channelToggle    `json:"webhook"`
	Telegram *telegramChannel `json:"telegram,omitempty"`
}

type channelToggle struct {
	Enabled bool `json:"enabled"`
}

type telegramChannel struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type modelSection struct {
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

// BuildAgentConfig maps a bot record into the config.json uploaded to the
// sandbox. It is pure and deterministic: retry re-derives the identical
// document from an unmodified bot record.
func BuildAgentConfig(bot *domain.Bot, model ModelConfig) ([]byte, error) {
	traits := []string{}
	if bot.PersonalityTraits != "" {
		if err := json.Unmarshal([]byte(bot.PersonalityTraits), &traits); err != nil {
			return nil, fmt.Errorf("decode personality traits for bot %s: %w", bot.ID, err)
		}
	}

	cfg := agentConfig{
		Agent: agentSection{
			Name:                 bot.Name,
			SystemPrompt:         bot.SystemPrompt,
			PersonalityTraits:    traits,
			BehavioralGuidelines: bot.BehavioralGuidelines,
		},
		Gateway: gatewaySection{
			Host: "0.0.0.0",
			Port: gatewayPort,
		},
		Channels: channelsSection{
			Webhook: channelToggle{Enabled: true},
		},
		Model: modelSection{
			Provider: "custom",
			Endpoint: model.Endpoint,
			APIKey:   model.APIKey,
		},
	}
	if bot.TelegramEnabled && bot.TelegramBotToken != "" {
		cfg.Channels.Telegram = &telegramChannel{
			Enabled:  true,
			BotToken: bot.TelegramBotToken,
		}
	}

	return json.MarshalIndent(cfg, "", "  ")
}
