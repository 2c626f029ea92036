package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xml2csv/internal/flatten"
	"github.com/agentic-research/xml2csv/internal/stats"
	"github.com/agentic-research/xml2csv/internal/tree"
)

func newInspectCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show where a document's rows come from and how full each column is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			doc, err := tree.Parse(args[0], f)
			if err != nil {
				return err
			}

			loc := flatten.Locate(doc)
			h := flatten.NewHeader()
			rows := flatten.Flattener{DescendSelected: cfg.DescendSelected}.Convert(doc, h)
			profile := stats.Build(flatten.Table(h, rows))

			parent := "(none, whole document is one row)"
			if loc.Parent != nil {
				parent = loc.Parent.Tag
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "row parent:\t%s\n", parent)
			fmt.Fprintf(w, "row tag:\t%s\n", loc.Tag)
			fmt.Fprintf(w, "row elements:\t%d\n", len(loc.Elements))
			fmt.Fprintf(w, "rows:\t%d\n", profile.RowCount)
			fmt.Fprintf(w, "complete rows:\t%d\n", profile.CoFilled(h.Columns()...))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "COLUMN\tPATH\tFILLED\tDISTINCT\tFILL")
			for _, c := range profile.Columns {
				path, _ := h.Path(c.Name)
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\n", c.Name, path.Dotted(), c.Filled, c.Cardinality, c.FillRatio*100)
			}
			return w.Flush()
		},
	}
}
