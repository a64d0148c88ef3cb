package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes(t *testing.T) {
	type spec struct {
		name        string
		input       string
		expVersion  string
		expTmpls    []string
		expErrorMsg string
	}

	specs := []spec{
		{
			name:       "Success/Empty",
			input:      `{"version":"2","templates":[]}`,
			expVersion: "2",
		},
		{
			name: "Success/PreservesFieldOrder",
			input: `{
  "version": "2",
  "templates": [
    {"type": 1, "title": "Nginx", "image": "nginx:latest", "categories": ["Web Servers:"]},
    {"title": "Zed", "type": 3, "repository": {"url": "https://example.com", "stackfile": "zed.yml"}}
  ]
}`,
			expVersion: "2",
			expTmpls: []string{
				`{"type":1,"title":"Nginx","image":"nginx:latest","categories":["Web Servers:"]}`,
				`{"title":"Zed","type":3,"repository":{"url":"https://example.com","stackfile":"zed.yml"}}`,
			},
		},
		{
			name: "Success/CommentsAndTrailingCommas",
			input: `// maintained by hand
{
  "version": "2",
  "templates": [
    {"title": "a", /* inline */ "image": "a",},
  ],
}`,
			expVersion: "2",
			expTmpls:   []string{`{"title":"a","image":"a"}`},
		},
		{
			name:       "Success/ExtraTopLevelKeysIgnored",
			input:      `{"version":"2","templates":[{"title":"a"}],"maintainer":"someone"}`,
			expVersion: "2",
			expTmpls:   []string{`{"title":"a"}`},
		},
		{
			name:       "Success/HTMLIsNotEscaped",
			input:      `{"version":"2","templates":[{"note":"<b>bold</b> & <i>"}]}`,
			expVersion: "2",
			expTmpls:   []string{`{"note":"<b>bold</b> & <i>"}`},
		},
		{
			name:        "Error/Empty",
			input:       "  \n",
			expErrorMsg: "malformed catalog: empty document",
		},
		{
			name:        "Error/NotJSON",
			input:       `<html>`,
			expErrorMsg: "malformed catalog",
		},
		{
			name:        "Error/MissingVersion",
			input:       `{"templates":[]}`,
			expErrorMsg: `malformed catalog: missing "version" key`,
		},
		{
			name:        "Error/MissingTemplates",
			input:       `{"version":"2"}`,
			expErrorMsg: `malformed catalog: missing "templates" key`,
		},
		{
			name:        "Error/NumericVersion",
			input:       `{"version":2,"templates":[]}`,
			expErrorMsg: `malformed catalog: "version" must be a string, found number`,
		},
		{
			name:        "Error/TemplatesNotArray",
			input:       `{"version":"2","templates":{}}`,
			expErrorMsg: `malformed catalog: "templates" must be an array, found object`,
		},
		{
			name:        "Error/TemplateNotObject",
			input:       `{"version":"2","templates":[{"title":"a"},"b"]}`,
			expErrorMsg: `malformed catalog: template[1]: template must be a JSON object, found string`,
		},
		{
			name:        "Error/SyntaxErrorPosition",
			input:       "{\n  \"version\": \"2\",\n  \"templates\": [}\n}",
			expErrorMsg: "malformed catalog: invalid character '}' looking for beginning of value at line 3, column 17",
		},
		{
			name:        "Error/SyntaxErrorAfterComment",
			input:       "// header\n{\"version\": \"2\" \"templates\": []}",
			expErrorMsg: "malformed catalog: invalid character '\"' after object key:value pair at line 2, column 17",
		},
		{
			name:        "Error/TopLevelArray",
			input:       `[{"version":"2","templates":[]}]`,
			expErrorMsg: "malformed catalog",
		},
	}

	for _, s := range specs {
		t.Run(s.name, func(t *testing.T) {
			actual, err := LoadBytes([]byte(s.input))
			if s.expErrorMsg != "" {
				require.ErrorIs(t, err, ErrMalformedCatalog)
				assert.True(t, strings.HasPrefix(err.Error(), s.expErrorMsg), "unexpected error %q", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, s.expVersion, actual.Version)
			assert.Equal(t, s.expTmpls, templateStrings(t, actual))
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","templates":[{"title":"a"}]}`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Version)
	assert.Len(t, cfg.Templates, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version":"2"}`), 0644))
	_, err = LoadFile(bad)
	require.ErrorIs(t, err, ErrMalformedCatalog)
	assert.Contains(t, err.Error(), bad)
}

func TestTemplateAccessors(t *testing.T) {
	tmpl := buildTemplate(t, `{"title":"x","type":2,"ports":["80"],"logo":null}`)

	assert.Equal(t, 4, tmpl.Len())
	assert.Equal(t, KindString, tmpl.Kind("title"))
	assert.Equal(t, KindNumber, tmpl.Kind("type"))
	assert.Equal(t, KindArray, tmpl.Kind("ports"))
	assert.Equal(t, KindNull, tmpl.Kind("logo"))
	assert.Equal(t, KindInvalid, tmpl.Kind("missing"))

	assert.Equal(t, "x", tmpl.String("title"))
	assert.Equal(t, "2", tmpl.String("type"))
	assert.Equal(t, `["80"]`, tmpl.String("ports"))
	assert.Equal(t, "", tmpl.String("logo"))
	assert.Equal(t, "", tmpl.String("missing"))

	updated := tmpl.With("title", []byte(`"y"`)).With("note", []byte(`"n"`))
	assert.Equal(t, "x", tmpl.String("title"))
	assert.Equal(t, `{"title":"y","type":2,"ports":["80"],"logo":null,"note":"n"}`, templateString(t, updated))
}

func TestTemplateDuplicateKeysLastWins(t *testing.T) {
	tmpl := buildTemplate(t, `{"title":"a","image":"x","title":"b"}`)
	assert.Equal(t, `{"title":"b","image":"x"}`, templateString(t, tmpl))
}
