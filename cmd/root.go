package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/xml2csv/internal/batch"
	"github.com/agentic-research/xml2csv/internal/config"
)

// version is stamped at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

// rootOptions holds flag values shared by every command. Only flags the user
// actually set override the config file.
type rootOptions struct {
	configPath string
	logFormat  string

	delimiter  string
	encoding   string
	format     string
	table      string
	deep       bool
	pruneEmpty bool

	mergeInto   string
	outputDir   string
	concurrency int
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "xml2csv [inputs...]",
		Short: "Flatten XML (or JSON) documents into CSV without a schema",
		Long: `xml2csv turns each input document into a table. The shallowest repeated
element becomes the row; nested repetition expands into one row per
combination, and every leaf becomes a column.

Inputs may be files or directories (walked for .xml and .json files).`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runConvert(cmd, args)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "Path to an HCL config file")
	pf.StringVar(&o.logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVarP(&o.delimiter, "delimiter", "d", string(def.Delimiter), `CSV field delimiter (\t for tab)`)
	pf.StringVarP(&o.encoding, "encoding", "e", def.Encoding, "Output text encoding")
	pf.StringVarP(&o.format, "format", "f", def.Format, "Output format: csv, jsonl or sqlite")
	pf.StringVar(&o.table, "table", def.Table, "Table name for sqlite output")
	pf.BoolVar(&o.deep, "deep", false, "Expand repetition nested inside repeated elements")
	pf.BoolVar(&o.pruneEmpty, "prune-empty", false, "Drop columns that are empty in every row")

	f := cmd.Flags()
	f.StringVarP(&o.mergeInto, "merge-into", "m", "", "Merge all inputs into this file (or merged.<ext> inside this directory)")
	f.StringVarP(&o.outputDir, "output-dir", "o", "", "Write outputs here instead of next to each input")
	f.IntVarP(&o.concurrency, "concurrency", "j", def.Concurrency, "Documents converted in parallel")

	cmd.AddCommand(newInspectCmd(o), newServeCmd(o), newMCPCmd(o))
	return cmd
}

// config resolves defaults, then the config file, then explicitly set flags.
func (o *rootOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(osfs.Default, o.configPath, cfg); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("delimiter") {
		r, err := config.ParseDelimiter(o.delimiter)
		if err != nil {
			return cfg, err
		}
		cfg.Delimiter = r
	}
	if flags.Changed("encoding") {
		cfg.Encoding = o.encoding
	}
	if flags.Changed("format") {
		cfg.Format = o.format
	}
	if flags.Changed("table") {
		cfg.Table = o.table
	}
	if flags.Changed("deep") {
		cfg.DescendSelected = o.deep
	}
	if flags.Changed("prune-empty") {
		cfg.PruneEmpty = o.pruneEmpty
	}
	if flags.Changed("merge-into") {
		cfg.MergeInto = o.mergeInto
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = o.outputDir
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) (*slog.Logger, error) {
	switch o.logFormat {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, nil)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, nil)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", o.logFormat)
	}
}

func (o *rootOptions) runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no inputs given")
	}
	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}
	log, err := o.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	runner := &batch.Runner{FS: osfs.Default, Config: cfg, Log: log}
	var report batch.Report
	if cfg.MergeInto != "" {
		report = runner.Merge(cmd.Context(), args)
	} else {
		report = runner.ConvertEach(cmd.Context(), args)
	}

	switch {
	case report.Err != nil:
		return report.Err
	case len(report.Results) == 0:
		return errors.New("no documents found")
	case !report.OK():
		return fmt.Errorf("all %d inputs failed", len(report.Results))
	}
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
