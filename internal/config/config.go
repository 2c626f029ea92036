package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"unicode/utf8"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/agentic-research/xml2csv/internal/sink"
)

// Config controls a conversion run.
type Config struct {
	Delimiter       rune
	Encoding        string
	Format          string
	OutputDir       string
	MergeInto       string
	Concurrency     int
	DescendSelected bool
	PruneEmpty      bool
	Table           string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Delimiter:   ',',
		Encoding:    "utf-8",
		Format:      sink.FormatCSV,
		Concurrency: runtime.NumCPU(),
		Table:       sink.DefaultTable,
	}
}

// File is the HCL form of Config. Unset attributes keep their defaults.
//
//	delimiter        = ";"
//	encoding         = "latin1"
//	format           = "jsonl"
//	output_dir       = "out"
//	merge_into       = "all.csv"
//	concurrency      = 4
//	descend_selected = true
//	prune_empty      = true
//	table            = "orders"
type File struct {
	Delimiter       *string `hcl:"delimiter,optional"`
	Encoding        *string `hcl:"encoding,optional"`
	Format          *string `hcl:"format,optional"`
	OutputDir       *string `hcl:"output_dir,optional"`
	MergeInto       *string `hcl:"merge_into,optional"`
	Concurrency     *int    `hcl:"concurrency,optional"`
	DescendSelected *bool   `hcl:"descend_selected,optional"`
	PruneEmpty      *bool   `hcl:"prune_empty,optional"`
	Table           *string `hcl:"table,optional"`
}

// LoadFile reads an HCL config file from fs and applies it over base.
func LoadFile(fs billy.Filesystem, path string, base Config) (Config, error) {
	src, err := util.ReadFile(fs, path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	return Decode(path, src, base)
}

// Decode parses HCL source and applies it over base. filename selects the
// syntax (.hcl native, .json JSON) and appears in diagnostics.
func Decode(filename string, src []byte, base Config) (Config, error) {
	var f File
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return base, fmt.Errorf("decode config %s: %w", filename, err)
	}
	return f.apply(base)
}

func (f File) apply(c Config) (Config, error) {
	if f.Delimiter != nil {
		r, err := ParseDelimiter(*f.Delimiter)
		if err != nil {
			return c, err
		}
		c.Delimiter = r
	}
	if f.Encoding != nil {
		c.Encoding = *f.Encoding
	}
	if f.Format != nil {
		c.Format = *f.Format
	}
	if f.OutputDir != nil {
		c.OutputDir = *f.OutputDir
	}
	if f.MergeInto != nil {
		c.MergeInto = *f.MergeInto
	}
	if f.Concurrency != nil {
		c.Concurrency = *f.Concurrency
	}
	if f.DescendSelected != nil {
		c.DescendSelected = *f.DescendSelected
	}
	if f.PruneEmpty != nil {
		c.PruneEmpty = *f.PruneEmpty
	}
	if f.Table != nil {
		c.Table = *f.Table
	}
	return c, nil
}

// ParseDelimiter accepts a single character, or the escape `\t` for tab.
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Delimiter {
	case 0, '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	if _, err := htmlindex.Get(c.Encoding); err != nil {
		return fmt.Errorf("unknown encoding %q", c.Encoding)
	}
	if !slices.Contains(sink.Formats, c.Format) {
		return fmt.Errorf("unknown format %q (want one of %v)", c.Format, sink.Formats)
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if c.Format == sink.FormatSQLite && c.Table == "" {
		return errors.New("sqlite output needs a table name")
	}
	return nil
}

// Workers is the effective parallelism: Concurrency, or 1 when unset.
func (c Config) Workers() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}
