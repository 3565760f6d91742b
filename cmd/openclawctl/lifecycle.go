package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return newLifecycleCmd("stop", "Stop a deployment's sandbox without deleting it",
		func(rt *deployerRuntime, ctx context.Context, id string) error {
			return rt.svc.Stop(ctx, id)
		})
}

func newRestartCmd() *cobra.Command {
	return newLifecycleCmd("restart", "Start a stopped sandbox and restart the agent",
		func(rt *deployerRuntime, ctx context.Context, id string) error {
			return rt.svc.Restart(ctx, id)
		})
}

func newTerminateCmd() *cobra.Command {
	return newLifecycleCmd("terminate", "Delete the sandbox and retire the deployment",
		func(rt *deployerRuntime, ctx context.Context, id string) error {
			return rt.svc.Terminate(ctx, id)
		})
}

func newLifecycleCmd(verb, short string, run func(*deployerRuntime, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <deployment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newDeployerRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := run(rt, cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"deployment_id": args[0],
				"operation":     verb,
				"result":        "ok",
			})
		},
	}
}
