package root

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/portainer-templates/tplmerge/cmd/tplmerge/internal/util"
	"github.com/portainer-templates/tplmerge/cmd/tplmerge/version"
	"github.com/portainer-templates/tplmerge/internal/action"
	"github.com/portainer-templates/tplmerge/internal/console"
	"github.com/portainer-templates/tplmerge/pkg/catalog"
	"github.com/portainer-templates/tplmerge/pkg/source"
)

const (
	defaultOutput  = "releases/templates.json"
	defaultSources = "sources.txt"
)

func NewCmd() *cobra.Command {
	var (
		output  string
		sources string
		unclean string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "tplmerge [flags] [CATALOG_FILE...]",
		Short: "Merge Portainer application template catalogs",
		Long: `Merge Portainer application template catalogs into one deduplicated catalog.

With no arguments, catalogs are downloaded from the locations listed in the
sources file. With two or more CATALOG_FILE arguments, those local files are
merged instead and the result is printed to stdout unless --output is set.`,
		Example: `  # Download every catalog in sources.txt into releases/templates.json
  tplmerge

  # Merge two local catalogs into a file
  tplmerge -o merged.json a.json b.json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ParseFormat(format)
			if err != nil {
				return err
			}

			var refs []source.Ref
			switch len(args) {
			case 0:
				refs, err = source.Resolve(sources)
				if err != nil {
					return err
				}
				if len(refs) == 0 {
					return fmt.Errorf("no URLs found in the sources file %q", sources)
				}
				if !cmd.Flags().Changed("output") {
					output = defaultOutput
				}
			case 1:
				return fmt.Errorf("at least two template files are required, got %d", len(args))
			default:
				refs = source.FromPaths(args)
				if !cmd.Flags().Changed("output") {
					output = catalog.StdoutDestination
				}
			}
			if output == catalog.StdoutDestination && unclean == catalog.StdoutDestination {
				return errors.New("--output and --unclean cannot both write to stdout")
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(logrus.GetLevel())
			log := logrus.NewEntry(logger)

			opts, err := util.GetFetcherOptions(cmd, log)
			if err != nil {
				return err
			}
			m := action.Merge{
				Refs:    refs,
				Fetcher: source.NewFetcher(opts...),
				Output:  output,
				Unclean: unclean,
				Format:  f,
				Stdout:  cmd.OutOrStdout(),
				Log:     log,
			}

			res, err := m.Run(cmd.Context())
			if res == nil {
				return err
			}

			// The summary must not mix with a catalog written to stdout.
			summary := cmd.OutOrStdout()
			if output == catalog.StdoutDestination {
				summary = cmd.ErrOrStderr()
			}
			printSummary(console.New(summary), res, err == nil)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultOutput, "destination of the merged catalog, - for stdout")
	cmd.Flags().StringVarP(&sources, "sources", "s", defaultSources, "file listing catalog URLs or paths, one per line")
	cmd.Flags().StringVar(&unclean, "unclean", "", "also write every fetched template, without deduplication, to this path")
	cmd.Flags().StringVar(&format, "format", string(catalog.FormatJSON), "output format (json|yaml)")
	util.AddFetchFlags(cmd.Flags())

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	if err := cmd.PersistentFlags().MarkHidden("debug"); err != nil {
		logrus.Panic(err.Error())
	}

	cmd.AddCommand(version.NewCmd())
	return cmd
}

func printSummary(p *console.Printer, res *action.MergeResult, written bool) {
	if n := len(res.Failures); n > 0 {
		p.Warningf("Skipped %d of %d sources that could not be downloaded", n, n+len(res.Sources))
	}
	p.Successf("Merged %d template files", len(res.Sources))
	p.Successf("Total unique templates: %d", res.Stats.Output)
	if written {
		p.Successf("Output file: %s", res.OutputPath)
	}
}
