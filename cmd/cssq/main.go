// Package main provides the cssq binary entry point: run a CSS selector
// against an HTML document and print the matches.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	cheerioselect "github.com/jdmiranda/cheerio-select"
	"github.com/jdmiranda/cheerio-select/dom"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		limit     int
		xmlMode   bool
		textOnly  bool
		countOnly bool
	)

	cmd := &cobra.Command{
		Use:   "cssq <selector> [file]",
		Short: "Query an HTML document with a CSS selector",
		Long: `cssq parses an HTML document, resolves a CSS selector against it, and
prints each match. The document is read from the given file, or from
standard input when no file is named.

Positional pseudo-classes (:first, :last, :eq, :nth, :lt, :gt, :even,
:odd) are supported alongside the standard structural selectors.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return run(cmd.OutOrStdout(), in, args[0], options{
				limit:     limit,
				xmlMode:   xmlMode,
				textOnly:  textOnly,
				countOnly: countOnly,
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many matches (0 means unbounded)")
	cmd.Flags().BoolVar(&xmlMode, "xml", false, "case-sensitive tag and attribute matching")
	cmd.Flags().BoolVarP(&textOnly, "text", "t", false, "print the text content of each match")
	cmd.Flags().BoolVarP(&countOnly, "count", "c", false, "print only the number of matches")

	return cmd
}

type options struct {
	limit     int
	xmlMode   bool
	textOnly  bool
	countOnly bool
}

func run(out io.Writer, in io.Reader, selector string, o options) error {
	doc, err := html.Parse(in)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	matches, err := cheerioselect.Select(
		cheerioselect.TextSelector(selector),
		doc,
		&cheerioselect.Options{XMLMode: o.xmlMode},
		o.limit,
	)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", selector, err)
	}

	if o.countOnly {
		_, err := fmt.Fprintln(out, len(matches))
		return err
	}
	for _, n := range matches {
		if o.textOnly {
			if _, err := fmt.Fprintln(out, strings.TrimSpace(dom.Default.Text(n))); err != nil {
				return err
			}
			continue
		}
		if err := html.Render(out, n); err != nil {
			return err
		}
		if _, err := io.WriteString(out, "\n"); err != nil {
			return err
		}
	}
	return nil
}
