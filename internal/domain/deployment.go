package domain

import (
	"encoding/json"
	"time"
)

// Deployment captures a single Conway provisioning attempt.
type Deployment struct {
	ID              string
	BotID           string
	SandboxID       *string
	SandboxName     string
	Region          string
	VCPU            int
	MemoryMB        int
	DiskGB          int
	Status          string
	CurrentStep     int
	TotalSteps      int
	StepDescription string
	PublicURL       *string
	PublicPort      *int
	IPAddress       *string
	AgentConfig     json.RawMessage
	BuyerName       string
	BuyerEmail      string
	OnboardingForm  json.RawMessage
	LastError       *string
	RetryCount      int
	ProvisionedAt   *time.Time
	InitializedAt   *time.Time
	LaunchedAt      *time.Time
	StoppedAt       *time.Time
	TerminatedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeploymentUpdate patches mutable pipeline-state fields on a deployment row.
// Zero-value fields are left untouched; pointer fields overwrite when non-nil.
type DeploymentUpdate struct {
	DeploymentID    string
	Status          string
	CurrentStep     *int
	StepDescription string
	SandboxID       *string
	SandboxName     string
	IPAddress       *string
	PublicURL       *string
	PublicPort      *int
	AgentConfig     json.RawMessage
	LastError       *string
	ProvisionedAt   *time.Time
	InitializedAt   *time.Time
	LaunchedAt      *time.Time
	StoppedAt       *time.Time
	TerminatedAt    *time.Time
}
