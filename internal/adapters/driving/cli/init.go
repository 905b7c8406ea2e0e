package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

var (
	initFragments []string
	initSources   []string
	initForce     bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a polymer-build.toml for the current project",
	Long: `Writes a configuration file with the default build settings. Use
--fragment and --source to fill in the entry documents and source globs,
or edit the file afterwards.

The file is written to --config when given, otherwise to
polymer-build.toml in the working directory.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringSliceVarP(&initFragments, "fragment", "f", nil, "fragment to analyze (repeatable)")
	initCmd.Flags().StringSliceVarP(&initSources, "source", "s", nil, "declared source glob (repeatable)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	if configWriter == nil {
		return errors.New("config writer not configured")
	}

	path := configPath
	if path == "" {
		path = domain.DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := domain.DefaultBuildConfig(".")
	if len(initSources) > 0 {
		cfg.Sources = initSources
	}
	cfg.Fragments = initFragments

	if err := configWriter(path, cfg); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}
