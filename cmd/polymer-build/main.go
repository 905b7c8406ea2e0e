// Command polymer-build analyzes the html import graph of a web component
// project and records its dependency index.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Polymer/polymer-build/internal/adapters/driven/config/file"
	"github.com/Polymer/polymer-build/internal/adapters/driven/storage/sqlite"
	"github.com/Polymer/polymer-build/internal/adapters/driving/cli"
	"github.com/Polymer/polymer-build/internal/analyzers/html"
	"github.com/Polymer/polymer-build/internal/bundlers/merge"
	"github.com/Polymer/polymer-build/internal/connectors/filesystem"
	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetServiceFactory(newServices)
	cli.SetConfigWriter(writeConfig)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// newServices wires the adapters for the project described by configPath.
func newServices(configPath string) (*cli.Services, error) {
	var (
		config *file.ConfigStore
		err    error
	)
	if configPath == "" {
		config, err = file.NewConfigStore(".")
	} else {
		config, err = file.Open(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err := file.LoadBuildConfig(config)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(filepath.Join(filepath.Dir(config.Path()), sqlite.DefaultDataDir))
	if err != nil {
		return nil, fmt.Errorf("opening index store: %w", err)
	}

	analyzers, err := html.NewFactory(html.DefaultCacheSize)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	return &cli.Services{
		Build:  services.NewBuildOrchestrator(filesystem.NewFactory(), analyzers, store),
		Bundle: services.NewBundleService(merge.New(merge.DefaultSharedBundle)),
		Index:  services.NewIndexService(store),
		Config: cfg,
		Close:  store.Close,
	}, nil
}

// writeConfig writes cfg as a TOML project file at path.
func writeConfig(path string, cfg domain.BuildConfig) error {
	config, err := file.Open(path)
	if err != nil {
		return err
	}
	return file.SaveBuildConfig(config, cfg)
}
