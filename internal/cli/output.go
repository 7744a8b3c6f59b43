package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// field is one line of text output.
type field struct {
	key   string
	value any
}

// writeOutput renders v as indented JSON, or fields as "key: value" lines.
func writeOutput(w io.Writer, format string, v any, fields []field) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "%s: %v\n", f.key, f.value); err != nil {
			return err
		}
	}
	return nil
}
