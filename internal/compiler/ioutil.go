package compiler

import (
	"encoding/json"
	"io"

	"github.com/masaori/evolimo/internal/definition"
)

// IOError wraps a failure reading or writing an IR JSON file —
// spec.md §7's fifth error class, a thin wrapper so callers can tell
// a malformed/missing file apart from a DefinitionError or
// ShapeError without inspecting error strings.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "compiler: " + e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// LoadIR decodes an OutputIR previously written by WriteIR.
func LoadIR(r io.Reader) (*OutputIR, error) {
	var ir OutputIR
	if err := json.NewDecoder(r).Decode(&ir); err != nil {
		return nil, &IOError{Op: "load_ir", Err: err}
	}
	return &ir, nil
}

// WriteIR encodes ir as indented JSON, matching the on-disk handoff
// format spec.md §6 describes.
func WriteIR(w io.Writer, ir *OutputIR) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ir); err != nil {
		return &IOError{Op: "write_ir", Err: err}
	}
	return nil
}

// WriteVisualMapping encodes the sibling visual-mapping JSON the core
// passes through untouched (spec.md §6, §12).
func WriteVisualMapping(w io.Writer, v *definition.VisualMapping) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return &IOError{Op: "write_visual_mapping", Err: err}
	}
	return nil
}
