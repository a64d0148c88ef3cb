package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// StdoutDestination is the destination name that selects standard output.
const StdoutDestination = "-"

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("invalid format %q, expected (json|yaml)", s)
	}
}

// WriteFunc encodes a catalog to w.
type WriteFunc func(Catalog, io.Writer) error

// Writer returns the encoder for f.
func (f Format) Writer() WriteFunc {
	if f == FormatYAML {
		return WriteYAML
	}
	return WriteJSON
}

// WriteJSON writes cfg as JSON indented by two spaces.
func WriteJSON(cfg Catalog, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(cfg)
}

// WriteYAML writes cfg as a YAML document.
func WriteYAML(cfg Catalog, w io.Writer) error {
	j, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	y, err := yaml.JSONToYAML(j)
	if err != nil {
		return err
	}
	_, err = w.Write(y)
	return err
}

// WriteFile encodes cfg to dest. The StdoutDestination writes to stdout;
// anything else is a file path that is replaced atomically, so a failed
// write never leaves a partial file behind. The parent directory of dest
// must exist.
func WriteFile(cfg Catalog, dest string, format Format, stdout io.Writer) error {
	buf := &bytes.Buffer{}
	if err := format.Writer()(cfg, buf); err != nil {
		return &WriteError{Destination: dest, Err: fmt.Errorf("encode: %v", err)}
	}
	if dest == StdoutDestination {
		if _, err := stdout.Write(buf.Bytes()); err != nil {
			return &WriteError{Destination: dest, Err: err}
		}
		return nil
	}
	if err := writeAtomic(dest, buf.Bytes()); err != nil {
		return &WriteError{Destination: dest, Err: err}
	}
	return nil
}

func writeAtomic(dest string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpFile.Name(), dest)
}
