package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s2e-tools/senv/internal/env"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Initialize a new analysis environment",
	Long: `Create the environment directory layout (build/, images/, install/,
projects/, source/) and the s2e.yaml marker file that identifies the
directory as an environment.

An existing environment is never reinitialized without --force, so two
environments cannot be silently merged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		e, err := env.Init(dir, initForce)
		if err != nil {
			return err
		}

		log.Info("environment initialized", "root", e.Root)

		fmt.Fprintf(cmd.OutOrStdout(), `Environment created in %s

Next steps:
  * Build or download VM images into %s
  * Create a project: senv new_project --env %s <target>
`, e.Root, e.ImagesPath(), e.Root)

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "reinitialize an existing environment")
	rootCmd.AddCommand(initCmd)
}
