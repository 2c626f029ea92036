// Package mcptool serves document flattening as MCP tools.
package mcptool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/xml2csv/internal/config"
	"github.com/agentic-research/xml2csv/internal/flatten"
	"github.com/agentic-research/xml2csv/internal/sink"
	"github.com/agentic-research/xml2csv/internal/stats"
	"github.com/agentic-research/xml2csv/internal/tree"
)

// Tools holds the handlers behind the MCP tools. Config supplies the
// delimiter, encoding and flattening defaults.
type Tools struct {
	Config config.Config
}

// NewServer builds an MCP server exposing flatten_document and locate_rows.
func NewServer(version string, cfg config.Config) *server.MCPServer {
	s := server.NewMCPServer("xml2csv", version, server.WithToolCapabilities(false))
	t := &Tools{Config: cfg}

	s.AddTool(mcp.NewTool("flatten_document",
		mcp.WithDescription("Flatten an XML or JSON document into a table. "+
			"Rows come from the shallowest repeated element; nested repetition expands into one row per combination."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document text")),
		mcp.WithString("type", mcp.Enum("xml", "json"), mcp.Description("Document syntax (default xml)")),
		mcp.WithString("format", mcp.Enum(sink.FormatCSV, sink.FormatJSONL), mcp.Description("Output format (default csv)")),
		mcp.WithBoolean("descend_selected", mcp.Description("Expand repetition nested inside repeated elements")),
		mcp.WithBoolean("prune_empty", mcp.Description("Drop columns that are empty in every row")),
	), t.FlattenDocument)

	s.AddTool(mcp.NewTool("locate_rows",
		mcp.WithDescription("Report the row parent, row tag, row count and columns a document would flatten to."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document text")),
		mcp.WithString("type", mcp.Enum("xml", "json"), mcp.Description("Document syntax (default xml)")),
	), t.LocateRows)

	return s
}

// ServeStdio runs s over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// FlattenDocument handles flatten_document.
func (t *Tools) FlattenDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := parseArg(req)
	if errResult != nil {
		return errResult, nil
	}

	format := req.GetString("format", sink.FormatCSV)
	fl := flatten.Flattener{DescendSelected: req.GetBool("descend_selected", t.Config.DescendSelected)}
	h := flatten.NewHeader()
	table := flatten.Table(h, fl.Convert(doc, h))
	if req.GetBool("prune_empty", t.Config.PruneEmpty) {
		table = stats.Prune(table)
	}

	// Tool results are text; the configured encoding does not apply here.
	var buf bytes.Buffer
	var w sink.Writer
	switch format {
	case sink.FormatCSV:
		w = &sink.CSV{W: &buf, Delimiter: t.Config.Delimiter}
	case sink.FormatJSONL:
		w = &sink.JSONLines{W: &buf}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format %q", format)), nil
	}
	if err := w.Write(table); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// LocateRows handles locate_rows.
func (t *Tools) LocateRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, errResult := parseArg(req)
	if errResult != nil {
		return errResult, nil
	}
	summary := flatten.Flattener{DescendSelected: t.Config.DescendSelected}.Summarize(doc)
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseArg parses the document argument. Bad input is reported as a tool
// error result so the model can correct it.
func parseArg(req mcp.CallToolRequest) (*tree.Node, *mcp.CallToolResult) {
	text, err := req.RequireString("document")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	p, err := tree.ForKind(req.GetString("type", "xml"))
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	doc, err := p.Parse(strings.NewReader(text))
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return doc, nil
}
