package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/f-o-x11/openclaw-deployer/internal/config"
	"github.com/f-o-x11/openclaw-deployer/internal/conway"
	"github.com/f-o-x11/openclaw-deployer/internal/domain"
	"github.com/f-o-x11/openclaw-deployer/internal/repository"
)

// Status constants for Conway deployments.
const (
	StatusPending      = "pending"
	StatusProvisioning = "provisioning"
	StatusInitializing = "initializing"
	StatusConfiguring  = "configuring"
	StatusLaunching    = "launching"
	StatusRunning      = "running"
	StatusStopped      = "stopped"
	StatusTerminated   = "terminated"
	StatusFailed       = "failed"
)

// Default sandbox resource spec, applied when the caller leaves fields unset.
const (
	DefaultRegion   = "us-east"
	defaultVCPU     = 1
	defaultMemoryMB = 1024
	defaultDiskGB   = 5

	totalSteps  = 4
	gatewayPort = 8080
)

var supportedRegions = map[string]bool{
	"us-east":  true,
	"eu-north": true,
}

// Commands issued inside the sandbox during provisioning.
const (
	installTerminalCmd = "curl -fsSL https://conway.tech/terminal.sh | sh"
	cloneRuntimeCmd    = "git clone https://github.com/openclaw/openclaw.git /home/ubuntu/openclaw"
	buildRuntimeCmd    = "cd /home/ubuntu/openclaw && pnpm install && pnpm build"
	ensureConfigDirCmd = "mkdir -p /home/ubuntu/.openclaw"
	agentConfigPath    = "/home/ubuntu/.openclaw/config.json"
	installPM2Cmd      = "npm install -g pm2 || true"
	startAgentCmd      = `cd /home/ubuntu/openclaw && pm2 start "pnpm start" --name openclaw-agent`
	restartAgentCmd    = `cd /home/ubuntu/openclaw && pm2 restart openclaw-agent || pm2 start "pnpm start" --name openclaw-agent`
)

// Cloud is the slice of the Conway client the pipeline drives.
type Cloud interface {
	CreateSandbox(ctx context.Context, req conway.CreateSandboxRequest) (*conway.Sandbox, error)
	WaitForRunning(ctx context.Context, sandboxID string, maxWait, pollInterval time.Duration) (*conway.Sandbox, error)
	Exec(ctx context.Context, sandboxID string, req conway.ExecRequest) (*conway.ExecResult, error)
	UploadFile(ctx context.Context, sandboxID string, req conway.UploadFileRequest) error
	ExposePort(ctx context.Context, sandboxID string, req conway.ExposePortRequest) (*conway.ExposePortResult, error)
	StopSandbox(ctx context.Context, sandboxID string) error
	StartSandbox(ctx context.Context, sandboxID string) error
	DeleteSandbox(ctx context.Context, sandboxID string) error
}

// Service runs the four-stage Conway provisioning pipeline and owns all
// writes to deployment pipeline-state fields.
type Service struct {
	bots        repository.BotRepository
	deployments repository.DeploymentRepository
	cloud       Cloud
	logger      *slog.Logger
	cfg         config.DeployerConfig
	metrics     *Metrics
}

// New returns a provisioning service.
func New(bots repository.BotRepository, deployments repository.DeploymentRepository, cloud Cloud, logger *slog.Logger, cfg config.DeployerConfig, metrics *Metrics) Service {
	return Service{
		bots:        bots,
		deployments: deployments,
		cloud:       cloud,
		logger:      logger,
		cfg:         cfg,
		metrics:     metrics,
	}
}

// ProvisionRequest carries the onboarding payload for one deployment.
type ProvisionRequest struct {
	BotID      string
	BuyerName  string
	BuyerEmail string
	// FormData holds arbitrary key-value pairs from the onboarding form; it
	// is persisted opaquely for provenance and retry.
	FormData map[string]any
	VCPU     int
	MemoryMB int
	DiskGB   int
	Region   string
}

// ProvisionResult summarizes a pipeline run.
type ProvisionResult struct {
	DeploymentID string  `json:"deployment_id"`
	SandboxID    *string `json:"sandbox_id"`
	Status       string  `json:"status"`
	PublicURL    *string `json:"public_url"`
}

// Provision runs the full pipeline for a bot: create the deployment record,
// then provision, initialize, configure and launch in strict order. Stage
// failures are absorbed into a persisted failed record and reported through
// the returned status, never through the error value; the error is reserved
// for caller misuse (unknown bot, bad region) and record-store failures that
// occur before the pipeline starts.
func (s Service) Provision(ctx context.Context, req ProvisionRequest) (ProvisionResult, error) {
	bot, err := s.bots.GetBotByID(ctx, req.BotID)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("resolve bot %s: %w", req.BotID, err)
	}

	applyDefaults(&req)
	if !supportedRegions[req.Region] {
		return ProvisionResult{}, fmt.Errorf("%w: unsupported region %q", ErrPrecondition, req.Region)
	}

	var form json.RawMessage
	if len(req.FormData) > 0 {
		form, err = json.Marshal(req.FormData)
		if err != nil {
			return ProvisionResult{}, fmt.Errorf("encode onboarding form: %w", err)
		}
	}

	now := time.Now().UTC()
	deployment := &domain.Deployment{
		ID:              uuid.NewString(),
		BotID:           bot.ID,
		Region:          req.Region,
		VCPU:            req.VCPU,
		MemoryMB:        req.MemoryMB,
		DiskGB:          req.DiskGB,
		Status:          StatusPending,
		CurrentStep:     0,
		TotalSteps:      totalSteps,
		StepDescription: "Queued for provisioning.",
		BuyerName:       req.BuyerName,
		BuyerEmail:      req.BuyerEmail,
		OnboardingForm:  form,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.deployments.CreateDeployment(ctx, deployment); err != nil {
		return ProvisionResult{}, fmt.Errorf("create deployment record: %w", err)
	}
	if err := s.bots.LinkDeployment(ctx, bot.ID, deployment.ID); err != nil {
		return ProvisionResult{}, fmt.Errorf("link deployment to bot %s: %w", bot.ID, err)
	}

	s.logger.Info("provisioning started", "deployment_id", deployment.ID, "bot_id", bot.ID, "region", deployment.Region)
	return s.run(ctx, bot, deployment), nil
}

func applyDefaults(req *ProvisionRequest) {
	if req.VCPU <= 0 {
		req.VCPU = defaultVCPU
	}
	if req.MemoryMB <= 0 {
		req.MemoryMB = defaultMemoryMB
	}
	if req.DiskGB <= 0 {
		req.DiskGB = defaultDiskGB
	}
	if req.Region == "" {
		req.Region = DefaultRegion
	}
}

// run executes stages 1-4 against an existing pending deployment row. Any
// stage error is converted into a persisted failed record.
func (s Service) run(ctx context.Context, bot *domain.Bot, deployment *domain.Deployment) ProvisionResult {
	var sandboxID, publicURL *string

	err := func() error {
		id, err := s.stepProvision(ctx, deployment, bot)
		if err != nil {
			return err
		}
		sandboxID = &id
		if err := s.stepInitialize(ctx, deployment.ID, id); err != nil {
			return err
		}
		if err := s.stepConfigure(ctx, deployment.ID, id, bot); err != nil {
			return err
		}
		url, err := s.stepLaunch(ctx, deployment.ID, id)
		if err != nil {
			return err
		}
		publicURL = url
		return nil
	}()

	if err != nil {
		errorMsg := conway.FormatError(err)
		s.logger.Error("provisioning failed", "deployment_id", deployment.ID, "bot_id", bot.ID, "error", errorMsg)
		if perr := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
			DeploymentID:    deployment.ID,
			Status:          StatusFailed,
			LastError:       &errorMsg,
			StepDescription: "Failed: " + errorMsg,
		}); perr != nil {
			s.logger.Error("persist failed status", "deployment_id", deployment.ID, "error", perr)
		}
		if berr := s.bots.MarkBotCrashed(ctx, bot.ID); berr != nil {
			s.logger.Warn("mark bot crashed failed", "bot_id", bot.ID, "error", berr)
		}
		s.metrics.recordOutcome("failed")
		return ProvisionResult{
			DeploymentID: deployment.ID,
			SandboxID:    sandboxID,
			Status:       StatusFailed,
		}
	}

	if berr := s.bots.MarkBotRunning(ctx, bot.ID, *sandboxID); berr != nil {
		s.logger.Warn("mark bot running failed", "bot_id", bot.ID, "error", berr)
	}
	s.metrics.recordOutcome("running")
	s.logger.Info("agent provisioned", "deployment_id", deployment.ID, "bot_id", bot.ID, "sandbox_id", *sandboxID)
	return ProvisionResult{
		DeploymentID: deployment.ID,
		SandboxID:    sandboxID,
		Status:       StatusRunning,
		PublicURL:    publicURL,
	}
}

// stepProvision creates the sandbox and blocks until it is running.
func (s Service) stepProvision(ctx context.Context, deployment *domain.Deployment, bot *domain.Bot) (string, error) {
	step := 1
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deployment.ID,
		Status:          StatusProvisioning,
		CurrentStep:     &step,
		StepDescription: "Creating Conway Cloud sandbox...",
	}); err != nil {
		return "", err
	}
	start := time.Now()

	sandbox, err := s.cloud.CreateSandbox(ctx, conway.CreateSandboxRequest{
		Name:     fmt.Sprintf("openclaw-bot-%s-%d", bot.ID, time.Now().Unix()),
		VCPU:     deployment.VCPU,
		MemoryMB: deployment.MemoryMB,
		DiskGB:   deployment.DiskGB,
		Region:   deployment.Region,
	})
	if err != nil {
		return "", err
	}

	// The sandbox must actually be running before any exec can succeed.
	running, err := s.cloud.WaitForRunning(ctx, sandbox.ID, s.cfg.SandboxMaxWait, s.cfg.SandboxPollInterval)
	if err != nil {
		return "", err
	}
	s.metrics.observeStage("provision", time.Since(start))

	now := time.Now().UTC()
	var ip *string
	if running.IPAddress != "" {
		ip = &running.IPAddress
	}
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deployment.ID,
		SandboxID:       &running.ID,
		SandboxName:     running.Name,
		IPAddress:       ip,
		ProvisionedAt:   &now,
		StepDescription: "Sandbox provisioned successfully.",
	}); err != nil {
		return "", err
	}
	return running.ID, nil
}

// stepInitialize installs the Conway Terminal, clones the OpenClaw runtime
// and builds it. Any non-zero exit is a hard failure with stderr captured.
func (s Service) stepInitialize(ctx context.Context, deploymentID, sandboxID string) error {
	step := 2
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusInitializing,
		CurrentStep:     &step,
		StepDescription: "Installing Conway Terminal & cloning OpenClaw runtime...",
	}); err != nil {
		return err
	}
	start := time.Now()

	commands := []struct {
		action  string
		command string
		timeout int
	}{
		{"Conway Terminal install", installTerminalCmd, 60},
		{"OpenClaw clone", cloneRuntimeCmd, 60},
		{"OpenClaw build", buildRuntimeCmd, 120},
	}
	for _, c := range commands {
		result, err := s.cloud.Exec(ctx, sandboxID, conway.ExecRequest{
			Command:        c.command,
			TimeoutSeconds: c.timeout,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return &ExecError{Action: c.action, ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
	}
	s.metrics.observeStage("initialize", time.Since(start))

	now := time.Now().UTC()
	return s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		InitializedAt:   &now,
		StepDescription: "OpenClaw runtime installed and built.",
	})
}

// stepConfigure derives the agent config from the bot record and uploads it.
func (s Service) stepConfigure(ctx context.Context, deploymentID, sandboxID string, bot *domain.Bot) error {
	step := 3
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusConfiguring,
		CurrentStep:     &step,
		StepDescription: "Injecting agent configuration...",
	}); err != nil {
		return err
	}
	start := time.Now()

	configJSON, err := BuildAgentConfig(bot, ModelConfig{
		Endpoint: s.cfg.ModelEndpoint(),
		APIKey:   s.cfg.ForgeAPIKey,
	})
	if err != nil {
		return err
	}

	if _, err := s.cloud.Exec(ctx, sandboxID, conway.ExecRequest{
		Command:        ensureConfigDirCmd,
		TimeoutSeconds: 10,
	}); err != nil {
		return err
	}
	if err := s.cloud.UploadFile(ctx, sandboxID, conway.UploadFileRequest{
		Path:    agentConfigPath,
		Content: string(configJSON),
		Mode:    "0644",
	}); err != nil {
		return err
	}
	s.metrics.observeStage("configure", time.Since(start))

	return s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		AgentConfig:     configJSON,
		StepDescription: "Agent configuration injected.",
	})
}

// stepLaunch starts the agent under pm2 and exposes the gateway port. Port
// exposure failure is non-fatal: the agent is live, just not publicly
// reachable yet, and the public URL stays null.
func (s Service) stepLaunch(ctx context.Context, deploymentID, sandboxID string) (*string, error) {
	step := 4
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusLaunching,
		CurrentStep:     &step,
		StepDescription: "Starting agent process and exposing gateway...",
	}); err != nil {
		return nil, err
	}
	start := time.Now()

	// Best-effort pm2 install; the command swallows its own failure.
	if _, err := s.cloud.Exec(ctx, sandboxID, conway.ExecRequest{
		Command:        installPM2Cmd,
		TimeoutSeconds: 30,
	}); err != nil {
		return nil, err
	}

	startResult, err := s.cloud.Exec(ctx, sandboxID, conway.ExecRequest{
		Command:        startAgentCmd,
		TimeoutSeconds: 30,
	})
	if err != nil {
		return nil, err
	}
	if startResult.ExitCode != 0 {
		return nil, &ExecError{Action: "Agent launch", ExitCode: startResult.ExitCode, Stderr: startResult.Stderr}
	}

	var publicURL *string
	portResult, err := s.cloud.ExposePort(ctx, sandboxID, conway.ExposePortRequest{
		Port:     gatewayPort,
		Protocol: "tcp",
	})
	if err != nil {
		s.logger.Warn("port expose failed", "sandbox_id", sandboxID, "port", gatewayPort, "error", conway.FormatError(err))
	} else if portResult.PublicURL != "" {
		publicURL = &portResult.PublicURL
	}
	s.metrics.observeStage("launch", time.Since(start))

	now := time.Now().UTC()
	port := gatewayPort
	if err := s.deployments.UpdateDeployment(ctx, domain.DeploymentUpdate{
		DeploymentID:    deploymentID,
		Status:          StatusRunning,
		PublicURL:       publicURL,
		PublicPort:      &port,
		LaunchedAt:      &now,
		StepDescription: "Agent is live.",
	}); err != nil {
		return nil, err
	}
	return publicURL, nil
}
