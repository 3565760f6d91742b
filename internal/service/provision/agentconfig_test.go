package provision

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/f-o-x11/openclaw-deployer/internal/domain"
)

func TestBuildAgentConfigIsDeterministic(t *testing.T) {
	bot := &domain.Bot{
		ID:                   "bot-1",
		Name:                 "Scout",
		SystemPrompt:         "You are Scout.",
		PersonalityTraits:    `["curious","direct"]`,
		BehavioralGuidelines: "Be brief.",
	}
	model := ModelConfig{Endpoint: "https://forge.test/llm/chat", APIKey: "forge-key"}

	first, err := BuildAgentConfig(bot, model)
	if err != nil {
		t.Fatalf("BuildAgentConfig returned error: %v", err)
	}
	second, err := BuildAgentConfig(bot, model)
	if err != nil {
		t.Fatalf("BuildAgentConfig returned error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical documents for identical inputs")
	}
}

func TestBuildAgentConfigShape(t *testing.T) {
	bot := &domain.Bot{
		ID:                   "bot-1",
		Name:                 "Scout",
		SystemPrompt:         "You are Scout.",
		PersonalityTraits:    `["curious"]`,
		BehavioralGuidelines: "Be brief.",
	}
	raw, err := BuildAgentConfig(bot, ModelConfig{Endpoint: "https://forge.test/llm/chat", APIKey: "forge-key"})
	if err != nil {
		t.Fatalf("BuildAgentConfig returned error: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("config is not valid JSON: %v", err)
	}
	for _, key := range []string{"agent", "gateway", "channels", "model"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("missing top-level section %q", key)
		}
	}

	var gateway struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.Unmarshal(doc["gateway"], &gateway); err != nil {
		t.Fatalf("decode gateway section: %v", err)
	}
	if gateway.Host != "0.0.0.0" || gateway.Port != gatewayPort {
		t.Fatalf("unexpected gateway %s:%d", gateway.Host, gateway.Port)
	}

	if strings.Contains(string(raw), `"telegram"`) {
		t.Fatalf("telegram section must be omitted when telegram is disabled")
	}
}

func TestBuildAgentConfigIncludesTelegramWhenConfigured(t *testing.T) {
	bot := &domain.Bot{
		ID:               "bot-1",
		Name:             "Scout",
		SystemPrompt:     "You are Scout.",
		TelegramEnabled:  true,
		TelegramBotToken: "tg-token",
	}
	raw, err := BuildAgentConfig(bot, ModelConfig{})
	if err != nil {
		t.Fatalf("BuildAgentConfig returned error: %v", err)
	}

	var doc struct {
		Channels struct {
			Telegram *struct {
				Enabled  bool   `json:"enabled"`
				BotToken string `json:"bot_token"`
			} `json:"telegram"`
		} `json:"channels"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if doc.Channels.Telegram == nil || !doc.Channels.Telegram.Enabled || doc.Channels.Telegram.BotToken != "tg-token" {
		t.Fatalf("unexpected telegram channel %+v", doc.Channels.Telegram)
	}
}

func TestBuildAgentConfigOmitsTelegramWithoutToken(t *testing.T) {
	bot := &domain.Bot{
		ID:              "bot-1",
		Name:            "Scout",
		SystemPrompt:    "You are Scout.",
		TelegramEnabled: true, // enabled but no token stored
	}
	raw, err := BuildAgentConfig(bot, ModelConfig{})
	if err != nil {
		t.Fatalf("BuildAgentConfig returned error: %v", err)
	}
	if strings.Contains(string(raw), `"telegram"`) {
		t.Fatalf("telegram section must be omitted without a token")
	}
}

func TestBuildAgentConfigDefaultsEmptyTraits(t *testing.T) {
	bot := &domain.Bot{ID: "bot-1", Name: "Scout", SystemPrompt: "You are Scout."}
	raw, err := BuildAgentConfig(bot, ModelConfig{})
	if err != nil {
		t.Fatalf("BuildAgentConfig returned error: %v", err)
	}

	var doc struct {
		Agent struct {
			PersonalityTraits []string `json:"personality_traits"`
		} `json:"agent"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if doc.Agent.PersonalityTraits == nil || len(doc.Agent.PersonalityTraits) != 0 {
		t.Fatalf("expected empty trait array, got %v", doc.Agent.PersonalityTraits)
	}
}

func TestBuildAgentConfigRejectsMalformedTraits(t *testing.T) {
	bot := &domain.Bot{ID: "bot-1", Name: "Scout", PersonalityTraits: "curious, direct"}
	if _, err := BuildAgentConfig(bot, ModelConfig{}); err == nil {
		t.Fatalf("expected error for malformed traits")
	}
}
