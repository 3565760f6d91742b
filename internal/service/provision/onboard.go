package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/f-o-x11/openclaw-deployer/internal/domain"
)

// OnboardRequest creates a bot and provisions it in one shot, typically from
// a storefront onboarding webhook.
type OnboardRequest struct {
	BotName              string
	Description          string
	PersonalityTraits    []string
	BehavioralGuidelines string
	SystemPrompt         string
	TelegramBotToken     string
	BuyerName            string
	BuyerEmail           string
	FormData             map[string]any
	VCPU                 int
	MemoryMB             int
	DiskGB               int
	Region               string
}

// OnboardResult pairs the created bot with its first provisioning run.
type OnboardResult struct {
	BotID string `json:"bot_id"`
	ProvisionResult
}

// Onboard creates the bot record and immediately kicks off provisioning.
// When no system prompt is supplied a default one is derived from the name.
func (s Service) Onboard(ctx context.Context, req OnboardRequest) (OnboardResult, error) {
	name := strings.TrimSpace(req.BotName)
	if name == "" {
		return OnboardResult{}, fmt.Errorf("%w: bot name is required", ErrPrecondition)
	}

	traits := "[]"
	if len(req.PersonalityTraits) > 0 {
		encoded, err := json.Marshal(req.PersonalityTraits)
		if err != nil {
			return OnboardResult{}, fmt.Errorf("encode personality traits: %w", err)
		}
		traits = string(encoded)
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf("You are %s, an AI assistant powered by OpenClaw.", name)
	}

	now := time.Now().UTC()
	bot := &domain.Bot{
		ID:                   uuid.NewString(),
		UserID:               "system",
		Name:                 name,
		Description:          req.Description,
		PersonalityTraits:    traits,
		BehavioralGuidelines: req.BehavioralGuidelines,
		SystemPrompt:         systemPrompt,
		Status:               domain.BotStatusStopped,
		TelegramEnabled:      req.TelegramBotToken != "",
		TelegramBotToken:     req.TelegramBotToken,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.bots.CreateBot(ctx, bot); err != nil {
		return OnboardResult{}, fmt.Errorf("create bot: %w", err)
	}
	s.logger.Info("bot onboarded", "bot_id", bot.ID, "name", bot.Name)

	result, err := s.Provision(ctx, ProvisionRequest{
		BotID:      bot.ID,
		BuyerName:  req.BuyerName,
		BuyerEmail: req.BuyerEmail,
		FormData:   req.FormData,
		VCPU:       req.VCPU,
		MemoryMB:   req.MemoryMB,
		DiskGB:     req.DiskGB,
		Region:     req.Region,
	})
	if err != nil {
		return OnboardResult{BotID: bot.ID}, err
	}
	return OnboardResult{BotID: bot.ID, ProvisionResult: result}, nil
}
