package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/f-o-x11/openclaw-deployer/internal/domain"
	"github.com/f-o-x11/openclaw-deployer/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.BotRepository        = (*Repository)(nil)
	_ repository.DeploymentRepository = (*Repository)(nil)
)

// CreateBot inserts a bot.
func (r *Repository) CreateBot(ctx context.Context, bot *domain.Bot) error {
	const query = `INSERT INTO bots (id, user_id, name, description, personality_traits, behavioral_guidelines,
			system_prompt, status, telegram_enabled, telegram_bot_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query,
		bot.ID,
		bot.UserID,
		bot.Name,
		bot.Description,
		bot.PersonalityTraits,
		bot.BehavioralGuidelines,
		bot.SystemPrompt,
		bot.Status,
		bot.TelegramEnabled,
		bot.TelegramBotToken,
		bot.CreatedAt,
		bot.UpdatedAt,
	)
	return err
}

// GetBotByID fetches a bot by identifier.
func (r *Repository) GetBotByID(ctx context.Context, botID string) (*domain.Bot, error) {
	const query = `SELECT id, user_id, name, description, personality_traits, behavioral_guidelines, system_prompt,
			process_id, port, status, conway_deployment_id, telegram_enabled, telegram_bot_token,
			last_started_at, last_stopped_at, created_at, updated_at
		FROM bots WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, botID)
	var b domain.Bot
	if err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.Name,
		&b.Description,
		&b.PersonalityTraits,
		&b.BehavioralGuidelines,
		&b.SystemPrompt,
		&b.ProcessID,
		&b.Port,
		&b.Status,
		&b.ConwayDeploymentID,
		&b.TelegramEnabled,
		&b.TelegramBotToken,
		&b.LastStartedAt,
		&b.LastStoppedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// LinkDeployment sets the deployment back-reference and marks the bot starting.
func (r *Repository) LinkDeployment(ctx context.Context, botID, deploymentID string) error {
	const query = `UPDATE bots
		SET conway_deployment_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, botID, deploymentID, domain.BotStatusStarting)
	return err
}

// MarkBotRunning records the sandbox as the bot's process and marks it running.
func (r *Repository) MarkBotRunning(ctx context.Context, botID, sandboxID string) error {
	const query = `UPDATE bots
		SET status = $2, process_id = $3, last_started_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, botID, domain.BotStatusRunning, sandboxID)
	return err
}

// MarkBotCrashed marks the bot crashed after a failed provisioning run.
func (r *Repository) MarkBotCrashed(ctx context.Context, botID string) error {
	const query = `UPDATE bots SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, botID, domain.BotStatusCrashed)
	return err
}

// MarkBotStopped marks the bot stopped and records the stop time.
func (r *Repository) MarkBotStopped(ctx context.Context, botID string) error {
	const query = `UPDATE bots
		SET status = $2, last_stopped_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, botID, domain.BotStatusStopped)
	return err
}

// UnlinkDeployment clears the deployment back-reference and process id.
func (r *Repository) UnlinkDeployment(ctx context.Context, botID string) error {
	const query = `UPDATE bots
		SET status = $2, conway_deployment_id = NULL, process_id = NULL,
			last_stopped_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, botID, domain.BotStatusStopped)
	return err
}

const deploymentColumns = `id, bot_id, sandbox_id, sandbox_name, region, vcpu, memory_mb, disk_gb,
	status, current_step, total_steps, step_description, public_url, public_port, ip_address,
	agent_config, buyer_name, buyer_email, onboarding_form_data, last_error, retry_count,
	provisioned_at, initialized_at, launched_at, stopped_at, terminated_at, created_at, updated_at`

// CreateDeployment inserts a deployment attempt row.
func (r *Repository) CreateDeployment(ctx context.Context, d *domain.Deployment) error {
	const query = `INSERT INTO conway_deployments (id, bot_id, sandbox_name, region, vcpu, memory_mb, disk_gb,
			status, current_step, total_steps, step_description, buyer_name, buyer_email,
			onboarding_form_data, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.BotID,
		d.SandboxName,
		d.Region,
		d.VCPU,
		d.MemoryMB,
		d.DiskGB,
		d.Status,
		d.CurrentStep,
		d.TotalSteps,
		d.StepDescription,
		d.BuyerName,
		d.BuyerEmail,
		d.OnboardingForm,
		d.RetryCount,
		d.CreatedAt,
		d.UpdatedAt,
	)
	return err
}

// UpdateDeployment applies a patch to mutable pipeline-state fields in a
// single statement, so pollers never observe a field-partial write.
func (r *Repository) UpdateDeployment(ctx context.Context, update domain.DeploymentUpdate) error {
	const query = `UPDATE conway_deployments
		SET status = COALESCE($2, status),
			current_step = COALESCE($3, current_step),
			step_description = COALESCE($4, step_description),
			sandbox_id = COALESCE($5, sandbox_id),
			sandbox_name = COALESCE($6, sandbox_name),
			ip_address = COALESCE($7, ip_address),
			public_url = COALESCE($8, public_url),
			public_port = COALESCE($9, public_port),
			agent_config = COALESCE($10, agent_config),
			last_error = COALESCE($11, last_error),
			provisioned_at = COALESCE($12, provisioned_at),
			initialized_at = COALESCE($13, initialized_at),
			launched_at = COALESCE($14, launched_at),
			stopped_at = COALESCE($15, stopped_at),
			terminated_at = COALESCE($16, terminated_at),
			updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query,
		update.DeploymentID,
		emptyToNil(update.Status),
		update.CurrentStep,
		emptyToNil(update.StepDescription),
		update.SandboxID,
		emptyToNil(update.SandboxName),
		update.IPAddress,
		update.PublicURL,
		update.PublicPort,
		update.AgentConfig,
		update.LastError,
		update.ProvisionedAt,
		update.InitializedAt,
		update.LaunchedAt,
		update.StoppedAt,
		update.TerminatedAt,
	)
	return err
}

// ResetDeploymentForRetry rewinds a deployment to pending for a fresh run.
func (r *Repository) ResetDeploymentForRetry(ctx context.Context, deploymentID, description string) error {
	const query = `UPDATE conway_deployments
		SET status = 'pending',
			current_step = 0,
			step_description = $2,
			sandbox_id = NULL,
			public_url = NULL,
			public_port = NULL,
			ip_address = NULL,
			last_error = NULL,
			retry_count = retry_count + 1,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, deploymentID, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetDeploymentByID fetches a deployment by identifier.
func (r *Repository) GetDeploymentByID(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	const query = `SELECT ` + deploymentColumns + ` FROM conway_deployments WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, deploymentID)
	d, err := scanDeployment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListDeployments returns deployments, optionally filtered by owning bot.
func (r *Repository) ListDeployments(ctx context.Context, botID string) ([]domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM conway_deployments ORDER BY created_at DESC`
	args := []any{}
	if botID != "" {
		query = `SELECT ` + deploymentColumns + ` FROM conway_deployments WHERE bot_id = $1 ORDER BY created_at DESC`
		args = append(args, botID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var d domain.Deployment
	if err := row.Scan(
		&d.ID,
		&d.BotID,
		&d.SandboxID,
		&d.SandboxName,
		&d.Region,
		&d.VCPU,
		&d.MemoryMB,
		&d.DiskGB,
		&d.Status,
		&d.CurrentStep,
		&d.TotalSteps,
		&d.StepDescription,
		&d.PublicURL,
		&d.PublicPort,
		&d.IPAddress,
		&d.AgentConfig,
		&d.BuyerName,
		&d.BuyerEmail,
		&d.OnboardingForm,
		&d.LastError,
		&d.RetryCount,
		&d.ProvisionedAt,
		&d.InitializedAt,
		&d.LaunchedAt,
		&d.StoppedAt,
		&d.TerminatedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func emptyToNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
