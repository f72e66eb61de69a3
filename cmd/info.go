package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s2e-tools/senv/internal/images"
)

var infoCmd = &cobra.Command{
	Use:     "info",
	Aliases: []string{"status"},
	Short:   "Show the active environment, its images, and its projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolveEnv()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Environment: %s\n", e.Root)
		fmt.Fprintf(out, "Settings version: %d\n", e.Settings.Version)
		if e.Settings.QEMUPath != "" {
			fmt.Fprintf(out, "QEMU: %s\n", e.Settings.QEMUPath)
		}

		descs, err := images.List(e.ImagesPath())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nImages (%d):\n", len(descs))
		for _, desc := range descs {
			fmt.Fprintf(out, "  %-30s %s/%s  formats: %s\n",
				desc.Name, desc.OS.Name, desc.OS.Arch,
				strings.Join(desc.OS.BinaryFormats, ","))
		}

		projects, err := e.Projects()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nProjects (%d):\n", len(projects))
		for _, name := range projects {
			fmt.Fprintf(out, "  %s\n", name)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
