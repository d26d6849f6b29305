package remote

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Dictionary describes the board side of a link: protocol version, command
// signatures and the peripheral constants.
type Dictionary struct {
	Version  string         `json:"version"`
	Commands map[string]int `json:"commands"`
	Config   map[string]any `json:"config"`
}

// CommandID looks up a command by name, ignoring its argument format.
func (d *Dictionary) CommandID(name string) (int, bool) {
	for sig, id := range d.Commands {
		if sig == name || strings.HasPrefix(sig, name+" ") {
			return id, true
		}
	}
	return 0, false
}

// encodeDictionary serialises d as zlib compressed JSON.
func encodeDictionary(d *Dictionary) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeDictionary parses a dictionary blob. Uncompressed JSON is accepted
// as well.
func decodeDictionary(blob []byte) (*Dictionary, error) {
	data := blob
	if len(blob) >= 2 && blob[0] == 0x78 {
		r, err := zlib.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("dictionary: %w", err)
		}
		defer r.Close()
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("dictionary: %w", err)
		}
	}

	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	return d, nil
}
