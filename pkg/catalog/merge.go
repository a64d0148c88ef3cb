package catalog

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Merger combines a set of catalogs into one.
type Merger interface {
	Merge(catalogs ...Catalog) (*Catalog, error)
}

var _ Merger = &DedupeStrategy{}

// DedupeStrategy normalizes and deduplicates templates. See Merge.
type DedupeStrategy struct {
	// Stats describes the last successful merge.
	Stats MergeStats
}

func (s *DedupeStrategy) Merge(catalogs ...Catalog) (*Catalog, error) {
	out, stats, err := MergeWithStats(catalogs...)
	if err != nil {
		return nil, err
	}
	s.Stats = stats
	return out, nil
}

var _ Merger = &ConcatStrategy{}

// ConcatStrategy concatenates templates without any normalization. See Concat.
type ConcatStrategy struct{}

func (ConcatStrategy) Merge(catalogs ...Catalog) (*Catalog, error) {
	return Concat(catalogs...)
}

const (
	fieldTitle      = "title"
	fieldCategories = "categories"
)

// identityFields are compared case-insensitively to decide whether two
// templates describe the same application.
var identityFields = [...]string{
	"name",
	fieldTitle,
	"command",
	"platform",
	"volumes",
	"ports",
	"image",
	"repository",
}

// richnessFields contribute their serialized length to a template's
// richness score.
var richnessFields = [...]string{
	"env",
	"description",
	fieldTitle,
	"note",
	"ports",
}

// Identity is the identity key of a template: the lowercased values of its
// identity fields, in a fixed order.
type Identity [len(identityFields)]string

// MergeStats describes what a merge removed.
type MergeStats struct {
	// Input is the number of templates across all input catalogs.
	Input int
	// ExactDuplicates is the number of templates dropped because another
	// template had the same fields and case-insensitively equal values.
	ExactDuplicates int
	// NearDuplicates is the number of templates dropped in favor of a richer
	// template with the same identity.
	NearDuplicates int
	// Output is the number of templates in the merged catalog.
	Output int
}

// Merge combines catalogs into a single catalog without duplicate templates.
//
// All catalogs must share the version of the first one, otherwise a
// *VersionMismatchError is returned. Category labels are normalized, exact
// duplicates are collapsed, and templates sharing an identity key are
// reduced to the one with the highest richness score. The result is ordered
// by title, case-insensitively. The result depends only on the set of input
// templates, not on their order. Inputs are never modified.
func Merge(catalogs ...Catalog) (*Catalog, error) {
	out, _, err := MergeWithStats(catalogs...)
	return out, err
}

// MergeWithStats is Merge, also reporting how many templates were removed.
func MergeWithStats(catalogs ...Catalog) (*Catalog, MergeStats, error) {
	var stats MergeStats
	version, err := acceptedVersion(catalogs)
	if err != nil {
		return nil, stats, err
	}

	var entries []entry
	for _, c := range catalogs {
		for _, t := range c.Templates {
			entries = append(entries, newEntry(NormalizeCategories(t)))
		}
	}
	stats.Input = len(entries)

	// Put the working set in content order so that first-wins collapsing
	// does not depend on which catalog a template came from.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].less(entries[j])
	})

	unique := collapseExact(entries)
	stats.ExactDuplicates = len(entries) - len(unique)

	reps := pickRepresentatives(unique)
	stats.NearDuplicates = len(unique) - len(reps)

	sort.SliceStable(reps, func(i, j int) bool {
		return reps[i].less(reps[j])
	})
	sortEntriesByTitle(reps)

	out := &Catalog{Version: version, Templates: make([]Template, 0, len(reps))}
	for _, e := range reps {
		out.Templates = append(out.Templates, e.tmpl)
	}
	stats.Output = len(out.Templates)
	return out, stats, nil
}

// Concat flattens catalogs into one catalog ordered by title, with no
// normalization or deduplication. It is meant for auditing a merge.
func Concat(catalogs ...Catalog) (*Catalog, error) {
	version, err := acceptedVersion(catalogs)
	if err != nil {
		return nil, err
	}
	var entries []entry
	for _, c := range catalogs {
		for _, t := range c.Templates {
			entries = append(entries, entry{tmpl: t})
		}
	}
	sortEntriesByTitle(entries)
	out := &Catalog{Version: version, Templates: make([]Template, 0, len(entries))}
	for _, e := range entries {
		out.Templates = append(out.Templates, e.tmpl)
	}
	return out, nil
}

func acceptedVersion(catalogs []Catalog) (string, error) {
	if len(catalogs) == 0 {
		return "", ErrNoCatalogs
	}
	version := catalogs[0].Version
	for _, c := range catalogs[1:] {
		if c.Version != version {
			return "", &VersionMismatchError{Expected: version, Actual: c.Version}
		}
	}
	return version, nil
}

type entry struct {
	tmpl      Template
	canonical string
	exactKey  string
	// ordered is the compact serialization in field order. It only breaks
	// ties between templates that differ in nothing but field order.
	ordered string
}

func newEntry(t Template) entry {
	ordered, err := marshalNoEscape(t)
	if err != nil {
		ordered = []byte(canonicalTemplate(t))
	}
	return entry{
		tmpl:      t,
		canonical: canonicalTemplate(t),
		exactKey:  exactKey(t),
		ordered:   string(ordered),
	}
}

func (e entry) less(o entry) bool {
	if e.canonical != o.canonical {
		return e.canonical < o.canonical
	}
	return e.ordered < o.ordered
}

// collapseExact keeps the first entry of every exact-duplicate class.
func collapseExact(entries []entry) []entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.exactKey]; ok {
			continue
		}
		seen[e.exactKey] = struct{}{}
		out = append(out, e)
	}
	return out
}

// pickRepresentatives groups entries by identity key and keeps the richest
// entry of each group. Equal scores go to the smallest canonical text.
func pickRepresentatives(entries []entry) []entry {
	type candidate struct {
		entry
		score int
	}
	byKey := make(map[Identity]int, len(entries))
	var reps []candidate
	for _, e := range entries {
		c := candidate{entry: e, score: RichnessScore(e.tmpl)}
		key := IdentityKey(e.tmpl)
		i, ok := byKey[key]
		if !ok {
			byKey[key] = len(reps)
			reps = append(reps, c)
			continue
		}
		cur := reps[i]
		if c.score > cur.score || (c.score == cur.score && c.less(cur.entry)) {
			reps[i] = c
		}
	}
	out := make([]entry, 0, len(reps))
	for _, c := range reps {
		out = append(out, c.entry)
	}
	return out
}

func sortEntriesByTitle(entries []entry) {
	keyed := make([]struct {
		title string
		e     entry
	}, len(entries))
	for i, e := range entries {
		keyed[i].title = strings.ToLower(e.tmpl.String(fieldTitle))
		keyed[i].e = e
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].title < keyed[j].title
	})
	for i := range keyed {
		entries[i] = keyed[i].e
	}
}

func sortedFields(t Template) []Field {
	fields := t.Fields()
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Name < fields[j].Name
	})
	return fields
}

// exactKey is the sorted (field, lowercased canonical value) tuple of t.
func exactKey(t Template) string {
	var sb strings.Builder
	for _, f := range sortedFields(t) {
		name, _ := marshalNoEscape(f.Name)
		sb.Write(name)
		sb.WriteByte(':')
		sb.WriteString(strings.ToLower(canonicalValue(f.Value)))
		sb.WriteByte(',')
	}
	return sb.String()
}

// IdentityKey returns the case- and order-insensitive identity of t. Two
// templates with equal keys are considered the same application.
func IdentityKey(t Template) Identity {
	var key Identity
	for i, name := range identityFields {
		v, ok := t.Get(name)
		if !ok {
			continue
		}
		key[i] = identityValue(v)
	}
	return key
}

func identityValue(raw json.RawMessage) string {
	switch kindOf(raw) {
	case KindNull, KindInvalid:
		return ""
	case KindArray:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return strings.ToLower(canonicalValue(raw))
		}
		forms := make([]string, 0, len(elems))
		for _, e := range elems {
			forms = append(forms, scalarForm(e))
		}
		sort.Strings(forms)
		return strings.Join(forms, ",")
	default:
		return scalarForm(raw)
	}
}

func scalarForm(raw json.RawMessage) string {
	if kindOf(raw) == KindString {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.ToLower(s)
		}
	}
	return strings.ToLower(canonicalValue(raw))
}

// RichnessScore measures how much descriptive content t carries.
func RichnessScore(t Template) int {
	score := 0
	for _, name := range richnessFields {
		if v, ok := t.Get(name); ok {
			score += len(canonicalValue(v))
		}
	}
	return score
}

// NormalizeCategories returns t with every string in its categories array
// rewritten by NormalizeCategory. Templates without a categories array are
// returned as is.
func NormalizeCategories(t Template) Template {
	if t.Kind(fieldCategories) != KindArray {
		return t
	}
	raw, _ := t.Get(fieldCategories)
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return t
	}
	lower := cases.Lower(language.Und)
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		if kindOf(e) != KindString {
			parts = append(parts, string(e))
			continue
		}
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			parts = append(parts, string(e))
			continue
		}
		b, err := marshalNoEscape(normalizeCategory(s, lower))
		if err != nil {
			parts = append(parts, string(e))
			continue
		}
		parts = append(parts, string(b))
	}
	return t.With(fieldCategories, json.RawMessage("["+strings.Join(parts, ",")+"]"))
}

// NormalizeCategory strips colons and whitespace from a category label and
// capitalizes it: "Web Servers:" becomes "Webservers".
func NormalizeCategory(s string) string {
	return normalizeCategory(s, cases.Lower(language.Und))
}

func normalizeCategory(s string, lower cases.Caser) string {
	s = strings.Map(func(r rune) rune {
		if r == ':' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(first)) + lower.String(s[size:])
}
