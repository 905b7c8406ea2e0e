package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

var depsJSON bool

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Query the dependency index of the last successful build",
}

var depsFragmentsCmd = &cobra.Command{
	Use:   "fragments",
	Short: "List analyzed fragments",
	Args:  cobra.NoArgs,
	RunE:  runDepsFragments,
}

var depsImportsCmd = &cobra.Command{
	Use:   "imports [fragment]",
	Short: "Show the files a fragment references directly",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepsImports,
}

var depsDependentsCmd = &cobra.Command{
	Use:   "dependents [file]",
	Short: "Show the documents that html-import a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepsDependents,
}

func init() {
	depsCmd.PersistentFlags().BoolVar(&depsJSON, "json", false, "output as JSON")
	depsCmd.AddCommand(depsFragmentsCmd)
	depsCmd.AddCommand(depsImportsCmd)
	depsCmd.AddCommand(depsDependentsCmd)
	rootCmd.AddCommand(depsCmd)
}

func indexService() (*Services, error) {
	svc, err := getServices()
	if err != nil {
		return nil, err
	}
	if svc.Index == nil {
		return nil, errors.New("index service not configured")
	}
	return svc, nil
}

func runDepsFragments(cmd *cobra.Command, _ []string) error {
	svc, err := indexService()
	if err != nil {
		return err
	}
	fragments, err := svc.Index.Fragments(cmd.Context())
	if err != nil {
		return noIndexHint(err)
	}
	if depsJSON {
		return printJSON(cmd, idStrings(fragments))
	}
	for _, f := range fragments {
		cmd.Println(f.String())
	}
	return nil
}

func runDepsImports(cmd *cobra.Command, args []string) error {
	svc, err := indexService()
	if err != nil {
		return err
	}
	id, err := domain.ParseCanonicalID(args[0])
	if err != nil {
		return err
	}
	refs, err := svc.Index.Imports(cmd.Context(), id)
	if err != nil {
		return noIndexHint(err)
	}

	if depsJSON {
		return printJSON(cmd, map[string][]string{
			"imports": idStrings(refs.Imports),
			"scripts": idStrings(refs.Scripts),
			"styles":  idStrings(refs.Styles),
		})
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title.Render(id.String()))
	printGroup(cmd, st, "Imports", refs.Imports)
	printGroup(cmd, st, "Scripts", refs.Scripts)
	printGroup(cmd, st, "Styles", refs.Styles)
	return nil
}

func runDepsDependents(cmd *cobra.Command, args []string) error {
	svc, err := indexService()
	if err != nil {
		return err
	}
	id, err := domain.ParseCanonicalID(args[0])
	if err != nil {
		return err
	}
	dependents, err := svc.Index.Dependents(cmd.Context(), id)
	if err != nil {
		return noIndexHint(err)
	}

	if depsJSON {
		return printJSON(cmd, idStrings(dependents))
	}
	if len(dependents) == 0 {
		cmd.Printf("No documents import %s.\n", id)
		return nil
	}
	for _, d := range dependents {
		cmd.Println(d.String())
	}
	return nil
}

func printGroup(cmd *cobra.Command, st styles, label string, ids []domain.CanonicalID) {
	cmd.Printf("  %s (%d)\n", label, len(ids))
	for _, id := range ids {
		cmd.Printf("    %s\n", id)
	}
	if len(ids) == 0 {
		cmd.Printf("    %s\n", st.Muted.Render("none"))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// noIndexHint adds a suggestion when nothing has been built yet.
func noIndexHint(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w (run 'polymer-build build' first?)", err)
	}
	return err
}
