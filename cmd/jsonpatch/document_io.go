package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentflare-ai/jsonpatch/v2"
)

type format string

const (
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func parseFormat(s string) (format, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "json":
		return formatJSON, nil
	case "yaml", "yml":
		return formatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// formatOf returns the override if set, otherwise the format implied by the
// extension of path.
func formatOf(path, override string) format {
	if f, err := parseFormat(override); err == nil && f != "" {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatJSON
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func toJSON(data []byte, f format) ([]byte, error) {
	if f != formatYAML {
		return data, nil
	}
	out, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML: %w", err)
	}
	return out, nil
}

func decodeDocument(data []byte, f format) (any, error) {
	data, err := toJSON(data, f)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (c *cli) loadDocument(cmd *cobra.Command, path string) (any, format, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, "", err
	}
	f := formatOf(path, c.format)
	doc, err := decodeDocument(data, f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	c.logger.Debug("document loaded", "path", path, "format", f, "bytes", len(data))
	return doc, f, nil
}

func (c *cli) loadPatch(cmd *cobra.Command, path string) (jsonpatch.Patch, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	if data, err = toJSON(data, formatOf(path, c.format)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	patch, err := jsonpatch.DecodePatch(data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("patch loaded", "path", path, "operations", len(patch))
	return patch, nil
}

// encode renders v, a document or a patch, in format f with a trailing newline.
func encode(v any, f format) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	if f == formatYAML {
		if data, err = yaml.JSONToYAML(data); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return data, nil
}
