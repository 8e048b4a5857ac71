package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printYAML writes v as YAML.
func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return sysError(fmt.Errorf("marshal YAML: %w", err))
	}
	return sysError(enc.Close())
}

// print writes v as JSON in --json mode and as YAML otherwise.
func (a *app) print(w io.Writer, v any) error {
	if a.flags.jsonMode {
		return printJSON(w, v)
	}
	return printYAML(w, v)
}
