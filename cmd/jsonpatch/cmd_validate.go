package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflare-ai/jsonpatch/v2"
)

// errPatchInvalid is returned once validate has printed a classified error.
var errPatchInvalid = errors.New("patch is invalid")

func (c *cli) newValidateCmd() *cobra.Command {
	var patchPath, docPath string
	cmd := &cobra.Command{
		Use:   "validate --patch FILE [--doc FILE]",
		Short: "Check a patch, optionally against a document",
		Long: `validate checks the shape of every operation. With --doc it also
applies the patch to a copy of the document, so unresolvable paths, out of
bounds indices and failing tests are reported too. Prints "ok" or the
classified error and exits non-zero on failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch, err := c.loadPatch(cmd, patchPath)
			if err == nil {
				if docPath == "" {
					err = jsonpatch.Validate(patch, nil)
				} else {
					var doc any
					if doc, _, err = c.loadDocument(cmd, docPath); err != nil {
						return err
					}
					err = jsonpatch.ValidateDocument(patch, doc, nil)
				}
			}

			var pe *jsonpatch.PatchError
			if errors.As(err, &pe) {
				c.logger.Debug("validation failed", "name", pe.Name, "index", pe.Index)
				fmt.Fprintln(cmd.OutOrStdout(), pe.Error())
				return errPatchInvalid
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&patchPath, "patch", "p", "", "patch to validate")
	cmd.Flags().StringVarP(&docPath, "doc", "d", "", "document to validate the patch against")
	_ = cmd.MarkFlagRequired("patch")
	return cmd
}
