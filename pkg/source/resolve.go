package source

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Kind tells how a source is fetched.
type Kind int

const (
	KindFile Kind = iota
	KindURL
)

func (k Kind) String() string {
	if k == KindURL {
		return "url"
	}
	return "file"
}

// Ref is a resolved source: a URL or a local file path.
type Ref struct {
	Location string
	Kind     Kind
}

func (r Ref) String() string {
	return r.Location
}

// ParseRef classifies a source location. URLs are recognized by their
// http:// or https:// prefix; anything else is a file path, resolved
// against baseDir when relative.
func ParseRef(location, baseDir string) Ref {
	if isURL(location) {
		return Ref{Location: location, Kind: KindURL}
	}
	if !filepath.IsAbs(location) && baseDir != "" {
		location = filepath.Join(baseDir, location)
	}
	return Ref{Location: filepath.Clean(location), Kind: KindFile}
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Resolve reads a newline-delimited source list. Blank lines and lines
// starting with '#' are ignored. Relative paths are resolved against the
// directory containing the list. The returned refs are de-duplicated and
// sorted by location.
func Resolve(listPath string) ([]Ref, error) {
	data, err := os.ReadFile(listPath)
	if err != nil {
		return nil, &SourceListError{Path: listPath, Err: err}
	}
	lines, err := parseList(data)
	if err != nil {
		return nil, &SourceListError{Path: listPath, Err: err}
	}

	baseDir := filepath.Dir(listPath)
	byLocation := map[string]Ref{}
	locations := sets.New[string]()
	for _, line := range lines {
		ref := ParseRef(line, baseDir)
		locations.Insert(ref.Location)
		byLocation[ref.Location] = ref
	}

	refs := make([]Ref, 0, locations.Len())
	for _, loc := range sets.List(locations) {
		refs = append(refs, byLocation[loc])
	}
	return refs, nil
}

func parseList(data []byte) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan source list")
	}
	return lines, nil
}

// FromPaths builds file refs for catalog files named on the command line,
// keeping their order.
func FromPaths(paths []string) []Ref {
	refs := make([]Ref, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, Ref{Location: filepath.Clean(p), Kind: KindFile})
	}
	return refs
}
