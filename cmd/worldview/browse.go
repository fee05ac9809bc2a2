package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/worldview/internal/core"
	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/web/templates"
)

type browseOptions struct {
	search string
	region string
	page   int
	output string
}

func newBrowseCmd(a *app) *cobra.Command {
	opts := browseOptions{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Print one page of the directory",
		Long: `browse fetches the country list once, applies the search text and region
filter, and prints the requested page.`,
		Example: `  worldview browse --region Europe --page 2
  worldview browse --search land --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return browse(cmd.Context(), a.fetcher(), a.cfg.Directory.PageSize, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "case-insensitive substring of the country name")
	cmd.Flags().StringVarP(&opts.region, "region", "r", "", "region filter (Africa, Americas, Asia, Europe, Oceania, Antarctic)")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "page to print; clamped to the available pages")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// browse loads one store, drives it through the same operations the web
// session uses and writes the resulting view to out.
func browse(ctx context.Context, f core.Fetcher, pageSize int, opts browseOptions, out, errOut io.Writer) error {
	region, ok := directory.ParseRegion(opts.region)
	if !ok {
		return errors.Errorf("%w: %q", directory.ErrUnknownRegion, opts.region)
	}
	switch opts.output {
	case "table", "json", "yaml":
	default:
		return errors.Errorf("unknown output format %q", opts.output)
	}

	records, fetchErr := f.FetchAll(ctx)

	store := directory.NewStore(pageSize)
	store.Load(records)
	v := store.UpdateFilter(directory.FilterChange{SearchText: &opts.search, Region: &region})
	for v.Page < opts.page && v.HasNext() {
		v = store.NextPage()
	}

	if err := writeView(out, opts.output, v); err != nil {
		return err
	}

	if fetchErr != nil {
		fmt.Fprintln(errOut, core.FormatUserError(fetchErr))
		return errors.Errorf("country list unavailable: %w", fetchErr)
	}
	return nil
}

func writeView(w io.Writer, format string, v directory.View) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTable(w, v)
	}
}

func writeTable(w io.Writer, v directory.View) error {
	data := pterm.TableData{{"Name", "Region", "Population", "Capital"}}
	for _, r := range v.Visible {
		data = append(data, []string{
			r.DisplayName,
			r.Region.String(),
			templates.FormatPopulation(r.Population),
			r.Capital,
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\npage %d of %d, %d matches\n", table, v.Page, v.TotalPages, v.MatchCount)
	return err
}
