package dataflow

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Read decodes a JSON dataflow document from r.
//
// The input must be a JSON object with a "graphs" array and an
// "entryGraph" id:
//
//	{
//	  "graphs": [{"id": "g1", "nodes": [...], "connections": [...]}],
//	  "entryGraph": "g1"
//	}
//
// Read performs no semantic validation; use the schema and dataflow
// validators for that. The returned document is independent of r and can
// be modified safely after Read returns. Read does not close r.
func Read(r io.Reader) (Dataflow, error) {
	var d Dataflow
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dataflow{}, fmt.Errorf("decode: %w", err)
	}
	return d, nil
}

// Write encodes a dataflow document as indented JSON and writes it to w.
// The output can be re-imported with [Read] for round-trip processing.
func Write(d Dataflow, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadFile reads a JSON dataflow document from the file at path.
// The error wraps the underlying cause with the file path for context.
func ReadFile(path string) (Dataflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataflow{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// WriteFile writes a dataflow document to a JSON file at path.
// This is a convenience wrapper around [Write] for file-based output.
func WriteFile(d Dataflow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(d, f)
}
