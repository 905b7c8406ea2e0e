package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driving"
	"github.com/Polymer/polymer-build/internal/logger"
)

// ManifestFile is the name of the manifest written next to bundled output.
const ManifestFile = "bundle-manifest.json"

var (
	buildWatch     bool
	buildBundleDir string
	buildFragments []string
	buildSources   []string
	buildRoot      string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Analyze the project and record its dependency index",
	Long: `Enumerates the declared sources, analyzes every fragment and records
the dependency index of the run.

Flags override the values in polymer-build.toml. With --bundle, fragments
and their exclusive imports are merged and the changed files are written
to the given directory together with bundle-manifest.json.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "rebuild when a declared source changes")
	buildCmd.Flags().StringVar(&buildBundleDir, "bundle", "", "write bundled output to this directory")
	buildCmd.Flags().StringSliceVarP(&buildFragments, "fragment", "f", nil, "fragment to analyze (repeatable)")
	buildCmd.Flags().StringSliceVarP(&buildSources, "source", "s", nil, "declared source glob (repeatable)")
	buildCmd.Flags().StringVar(&buildRoot, "root", "", "project root directory")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	if svc.Build == nil {
		return errors.New("build service not configured")
	}
	if buildBundleDir != "" && svc.Bundle == nil {
		return errors.New("bundle service not configured")
	}

	cfg := buildConfigFromFlags(svc.Config)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	st := newStyles(out)

	if buildWatch {
		err := svc.Build.Watch(ctx, cfg, func(ctx context.Context, b driving.Build) error {
			if err := handleBuild(ctx, out, st, svc, b); err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, st.Error.Render("Build failed: ")+err.Error())
			}
			fmt.Fprintln(out, st.Muted.Render("Watching for changes..."))
			return ctx.Err()
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	b, err := svc.Build.Start(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	handleErr := handleBuild(ctx, out, st, svc, b)

	if _, err := svc.Build.Finish(ctx, b); err != nil {
		logger.Warn("Recording build %s: %v", b.ID(), err)
	}
	if handleErr != nil {
		return fmt.Errorf("build failed: %w", handleErr)
	}
	return nil
}

// buildConfigFromFlags overlays command-line flags on the file config.
func buildConfigFromFlags(cfg domain.BuildConfig) domain.BuildConfig {
	if buildRoot != "" {
		cfg.Root = buildRoot
	}
	if len(buildFragments) > 0 {
		cfg.Fragments = buildFragments
	}
	if len(buildSources) > 0 {
		cfg.Sources = buildSources
	}
	return cfg
}

// handleBuild drains a run's output streams, waits for its index, prints a
// summary and optionally bundles.
func handleBuild(ctx context.Context, out io.Writer, st styles, svc *Services, b driving.Build) error {
	var sources, deps int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		files, errs := b.Sources()
		n, err := drain(gctx, files, errs)
		sources = n
		return err
	})
	g.Go(func() error {
		files, errs := b.Dependencies()
		n, err := drain(gctx, files, errs)
		deps = n
		return err
	})
	streamErr := g.Wait()

	idx, err := b.Index(ctx)
	if err == nil {
		err = streamErr
	}

	warnings, werr := b.Warnings(ctx)
	if werr != nil {
		logger.Debug("Reading warnings: %v", werr)
	}
	printSummary(out, st, b.ID(), sources, deps, idx, warnings, err)
	if err != nil {
		return err
	}

	if buildBundleDir == "" {
		return nil
	}
	result, err := svc.Bundle.Bundle(ctx, b)
	if err != nil {
		return err
	}
	if err := writeBundle(buildBundleDir, result); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d bundled files to %s\n", len(result.Changed), buildBundleDir)
	return nil
}

// drain consumes a file stream until it settles.
func drain(ctx context.Context, files <-chan domain.File, errs <-chan error) (int, error) {
	n := 0
	for {
		select {
		case f, ok := <-files:
			if !ok {
				select {
				case err := <-errs:
					return n, err
				case <-ctx.Done():
					return n, ctx.Err()
				}
			}
			logger.Debug("Emitted %s (%d bytes)", f.ID, len(f.Contents))
			n++
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
}

func printSummary(
	out io.Writer,
	st styles,
	runID string,
	sources, deps int,
	idx *domain.DependencyIndex,
	warnings []domain.Warning,
	runErr error,
) {
	if runErr != nil {
		fmt.Fprintf(out, "%s %s\n", st.Error.Render("Build failed"), st.Muted.Render(runID))
	} else {
		fmt.Fprintf(out, "%s %s\n", st.Success.Render("Build succeeded"), st.Muted.Render(runID))
	}

	fmt.Fprintf(out, "  Sources:      %d\n", sources)
	fmt.Fprintf(out, "  Dependencies: %d\n", deps)
	if idx != nil {
		fmt.Fprintf(out, "  Fragments:    %d\n", len(idx.FragmentToDeps))
	}

	tally := domain.TallyWarnings(warnings)
	fmt.Fprintf(out, "  Warnings:     %s, %s, %s\n",
		st.Error.Render(fmt.Sprintf("%d errors", tally.Errors)),
		st.Warning.Render(fmt.Sprintf("%d warnings", tally.Warnings)),
		st.Muted.Render(fmt.Sprintf("%d info", tally.Infos)))

	for _, w := range warnings {
		fmt.Fprintf(out, "    %s %s [%s] %s\n",
			st.Severity(w.Severity).Render(w.Severity.String()), w.SourceURL, w.Code, w.Message)
	}
	if runErr != nil {
		fmt.Fprintf(out, "  %s\n", st.Error.Render(runErr.Error()))
	}
}

type manifestBundle struct {
	ID        string   `json:"id"`
	Fragments []string `json:"fragments"`
	Files     []string `json:"files"`
}

type manifestDoc struct {
	Bundles []manifestBundle `json:"bundles"`
	Evicted []string         `json:"evicted"`
}

// writeBundle writes changed files and the manifest under dir.
func writeBundle(dir string, result *domain.BundleResult) error {
	for _, f := range result.Changed {
		target := filepath.Join(dir, filepath.FromSlash(f.ID.Path()))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(target, f.Contents, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.ID, err)
		}
	}

	doc := manifestDoc{Bundles: []manifestBundle{}, Evicted: idStrings(result.Evicted)}
	if result.Manifest != nil {
		for _, bundle := range result.Manifest.Bundles {
			doc.Bundles = append(doc.Bundles, manifestBundle{
				ID:        bundle.ID.String(),
				Fragments: idStrings(bundle.Fragments),
				Files:     idStrings(bundle.Files),
			})
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), append(data, '\n'), 0644)
}

func idStrings(ids []domain.CanonicalID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
