package main

import (
	"github.com/mednat/tandem-extras/internal/conf"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           Name,
		Short:         "Profile identity and classification daemon",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "conf", "c", "configs/config.yaml", "Configuration file path")

	load := func() (*conf.Bootstrap, error) {
		return conf.Load(configFlag)
	}
	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newCheckCommand(load))

	return rootCmd
}

type configLoader func() (*conf.Bootstrap, error)

func logLevel(bc *conf.Bootstrap) string {
	if bc.Log == nil {
		return ""
	}
	return bc.Log.Level
}

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := load()
			if err != nil {
				return err
			}
			app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Filter, newLogger(logLevel(bc)))
			if err != nil {
				return err
			}
			defer cleanup()

			return app.Run()
		},
	}
}
