package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/tidwall/jsonc"
)

// LoadBytes parses a catalog document. Comments and trailing commas, which
// are common in hand-maintained catalogs, are tolerated.
func LoadBytes(data []byte) (*Catalog, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedCatalog)
	}
	// ToJSON keeps offsets and line breaks, so decoder offsets map back to
	// the original document.
	data = jsonc.ToJSON(data)
	cfg := &Catalog{}
	if err := json.Unmarshal(data, cfg); err != nil {
		if errors.Is(err, ErrMalformedCatalog) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v%s", ErrMalformedCatalog, err, position(data, err))
	}
	return cfg, nil
}

// position locates a decoding error in data as " at line L, column C", or
// returns "" when the error carries no usable offset.
func position(data []byte, err error) string {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return ""
	}
	if offset <= 0 || offset > int64(len(data)) {
		return ""
	}

	// Offsets count the bytes read up to and including the offending one.
	idx := int(offset) - 1
	line := 1 + bytes.Count(data[:idx], []byte("\n"))
	column := idx - bytes.LastIndexByte(data[:idx], '\n')
	return fmt.Sprintf(" at line %d, column %d", line, column)
}

// LoadReader reads and parses a catalog document from r.
func LoadReader(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data)
}

// LoadFile reads and parses the catalog document at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := LoadReader(f)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load %q", path)
	}
	return cfg, nil
}
