// Package cli provides the cobra command tree for polymer-build.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driving"
	"github.com/Polymer/polymer-build/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving ports the commands use.
type Services struct {
	Build  driving.BuildService
	Bundle driving.BundleService
	Index  driving.IndexService

	// Config is the project configuration loaded from the config file.
	Config domain.BuildConfig

	// Close releases resources held by the services. May be nil.
	Close func() error
}

// ServiceFactory builds the services for a config file path. An empty
// path selects the default config file in the working directory.
type ServiceFactory func(configPath string) (*Services, error)

// ConfigWriter writes cfg as the project configuration file at path.
type ConfigWriter func(path string, cfg domain.BuildConfig) error

var (
	configPath string
	verbose    bool

	serviceFactory ServiceFactory
	activeServices *Services
	configWriter   ConfigWriter
)

var rootCmd = &cobra.Command{
	Use:   "polymer-build",
	Short: "Dependency analysis for web component projects",
	Long: `polymer-build walks a project's declared sources, analyzes each entry
fragment for html imports, scripts and stylesheets, and records the
resulting dependency index.

Project settings are read from polymer-build.toml.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to polymer-build.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServiceFactory sets how commands obtain their services.
func SetServiceFactory(factory ServiceFactory) {
	serviceFactory = factory
}

// SetConfigWriter sets how the init command writes the configuration file.
func SetConfigWriter(writer ConfigWriter) {
	configWriter = writer
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getServices returns the services, creating them on first use.
func getServices() (*Services, error) {
	if activeServices != nil {
		return activeServices, nil
	}
	if serviceFactory == nil {
		return nil, errors.New("services not configured")
	}
	svc, err := serviceFactory(configPath)
	if err != nil {
		return nil, fmt.Errorf("initialising: %w", err)
	}
	activeServices = svc
	return activeServices, nil
}

func closeServices() error {
	if activeServices == nil || activeServices.Close == nil {
		return nil
	}
	closer := activeServices.Close
	activeServices.Close = nil
	return closer()
}
