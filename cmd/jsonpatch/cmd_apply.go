package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentflare-ai/jsonpatch/v2"
)

func (c *cli) newApplyCmd() *cobra.Command {
	var (
		docPath   string
		patchPath string
		output    string
		validate  bool
		inPlace   bool
	)
	cmd := &cobra.Command{
		Use:   "apply --doc FILE --patch FILE",
		Short: "Apply a patch to a document and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPlace && docPath == "-" {
				return errors.New("--in-place needs a document file, not stdin")
			}
			if docPath == "-" && patchPath == "-" {
				return errors.New("only one of --doc and --patch can read stdin")
			}
			doc, docFormat, err := c.loadDocument(cmd, docPath)
			if err != nil {
				return err
			}
			patch, err := c.loadPatch(cmd, patchPath)
			if err != nil {
				return err
			}

			var opts []jsonpatch.Option
			if validate {
				opts = append(opts, jsonpatch.WithValidation())
			}
			res, err := jsonpatch.ApplyPatch(doc, patch, opts...)
			if err != nil {
				return fmt.Errorf("failed to apply %s: %w", patchPath, err)
			}
			c.logger.Debug("patch applied", "operations", len(res.Results))

			outFormat := docFormat
			if output != "" {
				if outFormat, err = parseFormat(output); err != nil {
					return err
				}
			}
			data, err := encode(res.NewDocument, outFormat)
			if err != nil {
				return err
			}
			if inPlace {
				return writeFileKeepMode(docPath, data)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&docPath, "doc", "d", "", "document to patch")
	cmd.Flags().StringVarP(&patchPath, "patch", "p", "", "patch to apply")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: json or yaml (default: the document's format)")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate every operation against the document before applying it")
	cmd.Flags().BoolVarP(&inPlace, "in-place", "i", false, "write the result back to the document file")
	_ = cmd.MarkFlagRequired("doc")
	_ = cmd.MarkFlagRequired("patch")
	return cmd
}

func writeFileKeepMode(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
