package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/f-o-x11/openclaw-deployer/internal/conway"
	"github.com/f-o-x11/openclaw-deployer/internal/domain"
)

// Stop halts the sandbox without deleting it. The deployment keeps every
// provisioned field so Restart can bring it back.
func (s Service) Stop(ctx context.Context, deploymentID string) error {
	deployment, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}
	if deployment.SandboxID == nil {
		return fmt.Errorf("%w: deployment %s has no sandbox", ErrPrecondition, deploymentID)
	}

	if err := s.cloud.StopSandbox(ctx, *deployment.SandboxID); err != nil {
		return fmt.Errorf("stop sandbox %s: %w", *deployment.SandboxID, err)
	}

	now := time.Now().UTC()
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusStopped,
		StoppedAt:       &now,
		StepDescription: "Sandbox stopped.",
	}); err != nil {
		return fmt.Errorf("persist stopped status: %w", err)
	}
	if err := s.bots.MarkBotStopped(ctx, deployment.BotID); err != nil {
		return fmt.Errorf("mark bot %s stopped: %w", deployment.BotID, err)
	}

	s.metrics.recordLifecycle("stop")
	s.logger.Info("deployment stopped", "deployment_id", deploymentID, "sandbox_id", *deployment.SandboxID)
	return nil
}

// Restart boots a stopped sandbox and restarts the agent process inside it.
func (s Service) Restart(ctx context.Context, deploymentID string) error {
	deployment, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}
	if deployment.SandboxID == nil {
		return fmt.Errorf("%w: deployment %s has no sandbox", ErrPrecondition, deploymentID)
	}
	sandboxID := *deployment.SandboxID

	if err := s.cloud.StartSandbox(ctx, sandboxID); err != nil {
		return fmt.Errorf("start sandbox %s: %w", sandboxID, err)
	}
	if _, err := s.cloud.Exec(ctx, sandboxID, conway.ExecRequest{
		Command:        restartAgentCmd,
		TimeoutSeconds: 30,
	}); err != nil {
		return fmt.Errorf("restart agent in sandbox %s: %w", sandboxID, err)
	}

	now := time.Now().UTC()
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusRunning,
		LaunchedAt:      &now,
		StepDescription: "Sandbox restarted.",
	}); err != nil {
		return fmt.Errorf("persist running status: %w", err)
	}
	if err := s.bots.MarkBotRunning(ctx, deployment.BotID, sandboxID); err != nil {
		return fmt.Errorf("mark bot %s running: %w", deployment.BotID, err)
	}

	s.metrics.recordLifecycle("restart")
	s.logger.Info("deployment restarted", "deployment_id", deploymentID, "sandbox_id", sandboxID)
	return nil
}

// Terminate deletes the sandbox and retires the deployment. Sandbox deletion
// is best-effort: the remote side may already have reclaimed it, and the
// record must reach terminated regardless.
func (s Service) Terminate(ctx context.Context, deploymentID string) error {
	deployment, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}

	if deployment.SandboxID != nil {
		if err := s.cloud.DeleteSandbox(ctx, *deployment.SandboxID); err != nil {
			s.logger.Warn("sandbox delete failed", "sandbox_id", *deployment.SandboxID, "error", conway.FormatError(err))
		}
	}

	now := time.Now().UTC()
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusTerminated,
		TerminatedAt:    &now,
		StepDescription: "Sandbox terminated and deleted.",
	}); err != nil {
		return fmt.Errorf("persist terminated status: %w", err)
	}
	if err := s.bots.UnlinkDeployment(ctx, deployment.BotID); err != nil {
		return fmt.Errorf("unlink deployment from bot %s: %w", deployment.BotID, err)
	}

	s.metrics.recordLifecycle("terminate")
	s.logger.Info("deployment terminated", "deployment_id", deploymentID)
	return nil
}

// Retry re-runs the full pipeline on a failed deployment, reusing the same
// record: stale sandbox fields and the last error are cleared, the retry
// count goes up, and all four stages run again from scratch.
func (s Service) Retry(ctx context.Context, deploymentID string) (ProvisionResult, error) {
	deployment, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}
	if deployment.Status != StatusFailed {
		return ProvisionResult{}, fmt.Errorf("%w: deployment %s is %q, only failed deployments can be retried", ErrPrecondition, deploymentID, deployment.Status)
	}

	bot, err := s.bots.GetBotByID(ctx, deployment.BotID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("resolve bot %s: %w", deployment.BotID, err)
	}

	if err := s.deployments.ResetDeploymentForRetry(ctx, deploymentID, "Retrying provisioning..."); err != nil {
		return ProvisionResult{}, fmt.Errorf("reset deployment %s for retry: %w", deploymentID, err)
	}
	if err := s.bots.LinkDeployment(ctx, bot.ID, deploymentID); err != nil {
		return ProvisionResult{}, fmt.Errorf("link deployment to bot %s: %w", bot.ID, err)
	}

	// Bring the in-memory row in line with the persisted reset.
	deployment.Status = StatusPending
	deployment.CurrentStep = 0
	deployment.SandboxID = nil
	deployment.PublicURL = nil
	deployment.PublicPort = nil
	deployment.IPAddress = nil
	deployment.LastError = nil
	deployment.RetryCount++

	s.metrics.recordLifecycle("retry")
	s.logger.Info("provisioning retry started", "deployment_id", deploymentID, "bot_id", bot.ID, "retry_count", deployment.RetryCount)
	return s.run(ctx, bot, deployment), nil
}

// GetStatus returns the deployment record for status polling.
func (s Service) GetStatus(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	deployment, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}
	return deployment, nil
}

// List returns all deployments, or only those owned by botID when non-empty,
// newest first.
func (s Service) List(ctx context.Context, botID string) ([]domain.Deployment, error) {
	deployments, err := s.deployments.ListDeployments(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deployments, nil
}
