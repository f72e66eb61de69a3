package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/s2e-tools/senv/internal/project"
)

var (
	projectName          string
	projectImage         string
	projectVariant       string
	projectForce         bool
	projectUseSeeds      bool
	projectEnablePov     bool
	projectSymArgs       []int
	allowVariantMismatch bool
)

var newProjectCmd = &cobra.Command{
	Use:     "new_project <target> [target_args...]",
	Aliases: []string{"new-project", "np"},
	Short:   "Create an analysis project for a binary",
	Long: `Classify the target binary, select a matching project variant and a
compatible VM image, and materialize the project directory under
projects/ in the active environment.

The variant is normally inferred from the binary format. Windows drivers
cannot be told apart from plain executables and must be requested with
--variant windows_driver. Use "@@" in the target arguments to mark an
argument that should receive a symbolic input file.`,
	Example: `  senv new_project ./bin/parser @@
  senv new_project --variant windows_driver ./netio.sys
  senv new_project -i debian-12-x86_64 -s ./a.out`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolveEnv()
		if err != nil {
			return err
		}

		opts := project.Options{
			Name:                projectName,
			Image:               projectImage,
			TargetArgs:          args[1:],
			UseSeeds:            projectUseSeeds,
			EnablePovGeneration: projectEnablePov,
			SymArgs:             projectSymArgs,
			// Per-user project defaults from the config file, e.g.
			// project.use_cupa: false in .senv.yml.
			Globals: viper.GetStringMap("project"),
		}
		if allowVariantMismatch {
			opts.Overrides = map[string]any{"allow_variant_mismatch": true}
		}

		resolver := project.NewResolver(e, project.Builtin(), log)
		res, err := resolver.Resolve(args[0], projectVariant, opts)
		if err != nil {
			return err
		}

		dest, err := res.Variant.Create(e, res.Config, projectForce)
		if err != nil {
			return err
		}

		log.Info("project created",
			"path", dest,
			"variant", res.Variant.Name(),
			"image", res.Image.Name)

		instructions, err := res.Variant.Instructions(res.Config)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), instructions)

		return nil
	},
}

func init() {
	newProjectCmd.Flags().StringVarP(&projectName, "name", "n", "", "project name (default: target file name without extension)")
	newProjectCmd.Flags().StringVarP(&projectImage, "image", "i", "", "VM image to use (default: first compatible image)")
	newProjectCmd.Flags().StringVarP(&projectVariant, "variant", "t", "", "force a project variant (linux, windows, windows_dll, windows_driver, cgc)")
	newProjectCmd.Flags().BoolVarP(&projectForce, "force", "f", false, "overwrite an existing project with the same name")
	newProjectCmd.Flags().BoolVarP(&projectUseSeeds, "use-seeds", "s", false, "start the analysis from seed files")
	newProjectCmd.Flags().BoolVar(&projectEnablePov, "enable-pov-generation", false, "generate proof-of-vulnerability inputs")
	newProjectCmd.Flags().IntSliceVarP(&projectSymArgs, "sym-args", "a", nil, "indices of target arguments to make symbolic")
	newProjectCmd.Flags().BoolVar(&allowVariantMismatch, "allow-variant-mismatch", false, "proceed even when the forced variant does not match the binary")
	rootCmd.AddCommand(newProjectCmd)
}
