package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/xml2csv/internal/mcptool"
)

func newMCPCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve flatten_document and locate_rows as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd)
			if err != nil {
				return err
			}
			return mcptool.ServeStdio(mcptool.NewServer(version, cfg))
		},
	}
}
