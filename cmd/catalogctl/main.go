// Command catalogctl checks region datasets and prints what the service
// would derive from them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"backend-cragmap/internal/catalog"
	"backend-cragmap/internal/search"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	dir string
}

func (o *rootOptions) fsys() fs.FS {
	if o.dir == "" {
		return catalog.Bundled()
	}
	return os.DirFS(o.dir)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Inspect climbing-site region datasets",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "directory of region JSON files (bundled data when empty)")

	root.AddCommand(newValidateCmd(opts), newOptionsCmd(opts), newSearchCmd(opts))
	return root
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load every dataset and report excluded entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, report, err := catalog.Load(context.Background(), opts.fsys())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files=%d regions=%d sites=%d excluded=%d\n",
				report.Files, report.Regions, report.Sites, len(report.Issues))
			for _, issue := range report.Issues {
				name := issue.Site
				if name == "" {
					name = fmt.Sprintf("#%d", issue.Index)
				}
				fmt.Fprintf(out, "  %s [%s] %s: %s\n", issue.File, issue.Region, name, issue.Reason)
			}
			if strict && len(report.Issues) > 0 {
				return fmt.Errorf("%d entries excluded", len(report.Issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any entry is excluded")
	return cmd
}

func newOptionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print the derived region, category, difficulty and style options as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sites, _, err := catalog.Load(context.Background(), opts.fsys())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(catalog.BuildOptions(sites))
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var crit search.Criteria
	var suggest bool
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Filter the catalog and print matching site ids",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				crit.Text = args[0]
			}
			sites, _, err := catalog.Load(context.Background(), opts.fsys())
			if err != nil {
				return err
			}
			var found []catalog.Site
			if suggest {
				found = search.Suggest(sites, crit.Text, search.DefaultSuggestLimit)
			} else {
				found = search.Filter(sites, crit)
			}
			out := cmd.OutOrStdout()
			for _, s := range found {
				fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, s.Name, s.Region)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&crit.Region, "region", "", "region name")
	cmd.Flags().StringSliceVar(&crit.Categories, "category", nil, "required category (repeatable)")
	cmd.Flags().StringVar(&crit.Difficulty, "difficulty", "", "route difficulty grade")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "autocomplete on name or region instead of filtering")
	return cmd
}
