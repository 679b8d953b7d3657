package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/agentflare-ai/jsonpatch/v2"
)

func (c *cli) newDiffCmd() *cobra.Command {
	var (
		output     string
		invertible bool
		text       bool
	)
	cmd := &cobra.Command{
		Use:   "diff FROM TO",
		Short: "Print the patch that turns FROM into TO",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, fromFormat, err := c.loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			to, _, err := c.loadDocument(cmd, args[1])
			if err != nil {
				return err
			}

			outFormat := formatJSON
			if output != "" {
				if outFormat, err = parseFormat(output); err != nil {
					return err
				}
			}
			if text {
				if output == "" {
					outFormat = fromFormat
				}
				return writeTextDiff(cmd.OutOrStdout(), from, to, outFormat)
			}

			var opts []jsonpatch.CompareOption
			if invertible {
				opts = append(opts, jsonpatch.Invertible())
			}
			patch, err := jsonpatch.Compare(from, to, opts...)
			if err != nil {
				return err
			}
			c.logger.Debug("documents compared", "operations", len(patch))
			data, err := encode(patch, outFormat)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: json or yaml")
	cmd.Flags().BoolVar(&invertible, "invertible", false, "precede every replace and remove with a test of the old value")
	cmd.Flags().BoolVar(&text, "text", false, "print a line diff of the two documents instead of a patch")
	return cmd
}

type palette struct {
	added   func(a ...any) string
	removed func(a ...any) string
}

// newPalette colours only when w is a terminal and NO_COLOR is unset.
func newPalette(w io.Writer) palette {
	plain := palette{added: fmt.Sprint, removed: fmt.Sprint}
	f, ok := w.(*os.File)
	if !ok {
		return plain
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return plain
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return plain
	}
	add := color.New(color.FgGreen)
	add.EnableColor()
	del := color.New(color.FgRed)
	del.EnableColor()
	return palette{added: add.SprintFunc(), removed: del.SprintFunc()}
}

// writeTextDiff renders both documents in format f and prints a line diff.
// Unchanged lines are indented, removed lines start with "-" and added lines with "+".
func writeTextDiff(w io.Writer, from, to any, f format) error {
	a, err := encode(from, f)
	if err != nil {
		return err
	}
	b, err := encode(to, f)
	if err != nil {
		return err
	}

	dmp := diffpatch.New()
	charsA, charsB, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(charsA, charsB, false), lines)

	p := newPalette(w)
	var sb strings.Builder
	for _, d := range diffs {
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			switch d.Type {
			case diffpatch.DiffDelete:
				sb.WriteString(p.removed("- " + line))
			case diffpatch.DiffInsert:
				sb.WriteString(p.added("+ " + line))
			default:
				sb.WriteString("  " + line)
			}
			sb.WriteByte('\n')
		}
	}
	_, err = io.WriteString(w, sb.String())
	return err
}
