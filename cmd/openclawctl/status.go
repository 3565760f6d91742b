package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/f-o-x11/openclaw-deployer/internal/domain"
)

// deploymentView is the JSON shape emitted for status and list output.
type deploymentView struct {
	ID              string          `json:"id"`
	BotID           string          `json:"bot_id"`
	SandboxID       *string         `json:"sandbox_id"`
	SandboxName     string          `json:"sandbox_name,omitempty"`
	Region          string          `json:"region"`
	VCPU            int             `json:"vcpu"`
	MemoryMB        int             `json:"memory_mb"`
	DiskGB          int             `json:"disk_gb"`
	Status          string          `json:"status"`
	CurrentStep     int             `json:"current_step"`
	TotalSteps      int             `json:"total_steps"`
	StepDescription string          `json:"step_description"`
	PublicURL       *string         `json:"public_url"`
	PublicPort      *int            `json:"public_port"`
	IPAddress       *string         `json:"ip_address"`
	BuyerName       string          `json:"buyer_name,omitempty"`
	BuyerEmail      string          `json:"buyer_email,omitempty"`
	OnboardingForm  json.RawMessage `json:"onboarding_form_data,omitempty"`
	LastError       *string         `json:"last_error"`
	RetryCount      int             `json:"retry_count"`
	ProvisionedAt   *time.Time      `json:"provisioned_at"`
	InitializedAt   *time.Time      `json:"initialized_at"`
	LaunchedAt      *time.Time      `json:"launched_at"`
	StoppedAt       *time.Time      `json:"stopped_at"`
	TerminatedAt    *time.Time      `json:"terminated_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func newDeploymentView(d domain.Deployment) deploymentView {
	return deploymentView{
		ID:              d.ID,
		BotID:           d.BotID,
		SandboxID:       d.SandboxID,
		SandboxName:     d.SandboxName,
		Region:          d.Region,
		VCPU:            d.VCPU,
		MemoryMB:        d.MemoryMB,
		DiskGB:          d.DiskGB,
		Status:          d.Status,
		CurrentStep:     d.CurrentStep,
		TotalSteps:      d.TotalSteps,
		StepDescription: d.StepDescription,
		PublicURL:       d.PublicURL,
		PublicPort:      d.PublicPort,
		IPAddress:       d.IPAddress,
		BuyerName:       d.BuyerName,
		BuyerEmail:      d.BuyerEmail,
		OnboardingForm:  d.OnboardingForm,
		LastError:       d.LastError,
		RetryCount:      d.RetryCount,
		ProvisionedAt:   d.ProvisionedAt,
		InitializedAt:   d.InitializedAt,
		LaunchedAt:      d.LaunchedAt,
		StoppedAt:       d.StoppedAt,
		TerminatedAt:    d.TerminatedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <deployment-id>",
		Short: "Show the current pipeline state of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDeployerRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			deployment, err := rt.svc.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, newDeploymentView(*deployment))
		},
	}
}

func newListCmd() *cobra.Command {
	var botID string

	command := &cobra.Command{
		Use:   "list",
		Short: "List deployments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newDeployerRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			deployments, err := rt.svc.List(cmd.Context(), botID)
			if err != nil {
				return err
			}
			views := make([]deploymentView, 0, len(deployments))
			for _, d := range deployments {
				views = append(views, newDeploymentView(d))
			}
			return printJSON(cmd, views)
		},
	}
	command.Flags().StringVar(&botID, "bot-id", "", "only list deployments for this bot")
	return command
}
