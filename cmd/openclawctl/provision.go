package main

import (
	"github.com/spf13/cobra"

	"github.com/f-o-x11/openclaw-deployer/internal/service/provision"
)

type provisionOptions struct {
	BuyerName  string
	BuyerEmail string
	VCPU       int
	MemoryMB   int
	DiskGB     int
	Region     string
}

func bindProvisionFlags(cmd *cobra.Command, opts *provisionOptions) {
	cmd.Flags().StringVar(&opts.BuyerName, "buyer-name", "", "buyer name recorded on the deployment")
	cmd.Flags().StringVar(&opts.BuyerEmail, "buyer-email", "", "buyer email recorded on the deployment")
	cmd.Flags().IntVar(&opts.VCPU, "vcpu", 0, "sandbox vCPU count (default 1)")
	cmd.Flags().IntVar(&opts.MemoryMB, "memory-mb", 0, "sandbox memory in MB (default 1024)")
	cmd.Flags().IntVar(&opts.DiskGB, "disk-gb", 0, "sandbox disk in GB (default 5)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "sandbox region (default "+provision.DefaultRegion+")")
}

func newProvisionCmd() *cobra.Command {
	var opts provisionOptions

	command := &cobra.Command{
		Use:   "provision <bot-id>",
		Short: "Deploy an existing bot onto a fresh Conway sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDeployerRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.svc.Provision(cmd.Context(), provision.ProvisionRequest{
				BotID:      args[0],
				BuyerName:  opts.BuyerName,
				BuyerEmail: opts.BuyerEmail,
				VCPU:       opts.VCPU,
				MemoryMB:   opts.MemoryMB,
				DiskGB:     opts.DiskGB,
				Region:     opts.Region,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	bindProvisionFlags(command, &opts)
	return command
}

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <deployment-id>",
		Short: "Re-run provisioning for a failed deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDeployerRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.svc.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}
