package domain

import "time"

// Bot statuses mirror the agent process lifecycle.
const (
	BotStatusStopped  = "stopped"
	BotStatusStarting = "starting"
	BotStatusRunning  = "running"
	BotStatusCrashed  = "crashed"
	BotStatusStopping = "stopping"
)

// Bot stores the configuration and process metadata for one OpenClaw agent.
type Bot struct {
	ID                   string
	UserID               string
	Name                 string
	Description          string
	PersonalityTraits    string // JSON array of trait strings
	BehavioralGuidelines string
	SystemPrompt         string
	ProcessID            *string // sandbox id while deployed on Conway
	Port                 *int
	Status               string
	ConwayDeploymentID   *string
	TelegramEnabled      bool
	TelegramBotToken     string
	LastStartedAt        *time.Time
	LastStoppedAt        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
