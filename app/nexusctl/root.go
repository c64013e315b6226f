package main

import (
	"github.com/spf13/cobra"

	"github.com/yoockh/nexusbot/config"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "nexusctl",
		Short:        "Operator tools for the NexusBot widget runtime",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	load := func() (config.Config, error) { return config.Load(envFile) }
	cmd.AddCommand(
		newMigrateCmd(load),
		newEnsureIndexesCmd(load),
		newRenderBridgeCmd(load),
		newPublishBridgeCmd(load),
		newInvalidateBotCmd(load),
	)
	return cmd
}

type configLoader func() (config.Config, error)
