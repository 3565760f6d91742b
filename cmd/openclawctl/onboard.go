package main

import (
	"github.com/spf13/cobra"

	"github.com/f-o-x11/openclaw-deployer/internal/service/provision"
)

func newOnboardCmd() *cobra.Command {
	var (
		description   string
		traits        []string
		guidelines    string
		systemPrompt  string
		telegramToken string
		resources     provisionOptions
	)

	command := &cobra.Command{
		Use:   "onboard <bot-name>",
		Short: "Create a bot and deploy it onto Conway Cloud in one step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDeployerRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.svc.Onboard(cmd.Context(), provision.OnboardRequest{
				BotName:              args[0],
				Description:          description,
				PersonalityTraits:    traits,
				BehavioralGuidelines: guidelines,
				SystemPrompt:         systemPrompt,
				TelegramBotToken:     telegramToken,
				BuyerName:            resources.BuyerName,
				BuyerEmail:           resources.BuyerEmail,
				VCPU:                 resources.VCPU,
				MemoryMB:             resources.MemoryMB,
				DiskGB:               resources.DiskGB,
				Region:               resources.Region,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	command.Flags().StringVar(&description, "description", "", "bot description")
	command.Flags().StringSliceVar(&traits, "trait", nil, "personality trait (repeatable)")
	command.Flags().StringVar(&guidelines, "guidelines", "", "behavioral guidelines")
	command.Flags().StringVar(&systemPrompt, "system-prompt", "", "system prompt (default derived from the bot name)")
	command.Flags().StringVar(&telegramToken, "telegram-token", "", "telegram bot token to enable the telegram channel")
	bindProvisionFlags(command, &resources)
	return command
}
