package repository

import (
	"context"

	"github.com/f-o-x11/openclaw-deployer/internal/domain"
)

// BotRepository persists bot configuration and process metadata. The
// provisioning pipeline is the only writer of the deployment-related bot
// fields (status, process id, back-reference, start/stop timestamps).
type BotRepository interface {
	CreateBot(ctx context.Context, bot *domain.Bot) error
	GetBotByID(ctx context.Context, botID string) (*domain.Bot, error)
	// LinkDeployment records the deployment back-reference on the bot and
	// moves it into the transitional "starting" status.
	LinkDeployment(ctx context.Context, botID, deploymentID string) error
	// MarkBotRunning records the sandbox as the bot's process reference.
	MarkBotRunning(ctx context.Context, botID, sandboxID string) error
	MarkBotCrashed(ctx context.Context, botID string) error
	MarkBotStopped(ctx context.Context, botID string) error
	// UnlinkDeployment clears the deployment back-reference and process id
	// after the sandbox is terminated.
	UnlinkDeployment(ctx context.Context, botID string) error
}

// DeploymentRepository stores Conway deployment attempts. Updates must be
// applied atomically per call so that concurrent status pollers never observe
// a field-partial write.
type DeploymentRepository interface {
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	UpdateDeployment(ctx context.Context, update domain.DeploymentUpdate) error
	GetDeploymentByID(ctx context.Context, deploymentID string) (*domain.Deployment, error)
	// ListDeployments returns all deployments, or only those owned by botID
	// when botID is non-empty.
	ListDeployments(ctx context.Context, botID string) ([]domain.Deployment, error)
	// ResetDeploymentForRetry moves a deployment back to pending: step 0,
	// sandbox-specific fields and last error cleared, retry count incremented.
	ResetDeploymentForRetry(ctx context.Context, deploymentID, description string) error
}
