package main

import (
	"encoding/json"
	"io"

	"arkimedes/internal/anvl"
)

type recordJSON struct {
	Identifier string            `json:"identifier"`
	Metadata   map[string]string `json:"metadata"`
}

func newRecordJSON(identifier string, rec anvl.Record) recordJSON {
	out := recordJSON{Identifier: identifier, Metadata: make(map[string]string, rec.Len())}
	for key, value := range rec.All() {
		if key == anvl.KeyIdentifier {
			continue
		}
		out.Metadata[key] = value
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
