package bundle

import (
	"embed"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/m1k1o/drmpack/internal/types"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var keySystems = []types.KeySystem{types.Clearkey, types.Widevine}

var Funcs = template.FuncMap{
	"uint8Array": Uint8Array,
	"base64url":  Base64URL,
}

// Uint8Array converts hex into a JavaScript byte array literal.
func Uint8Array(hexString string) (string, error) {
	data, err := hex.DecodeString(hexString)
	if err != nil {
		return "", fmt.Errorf("uint8Array: %w", err)
	}

	bytes := make([]string, len(data))
	for i, b := range data {
		bytes[i] = fmt.Sprintf("0x%02x", b)
	}

	return "new Uint8Array([" + strings.Join(bytes, ", ") + "])", nil
}

// Base64URL converts hex into unpadded base64url, as used by JSON Web Keys.
func Base64URL(hexString string) (string, error) {
	data, err := hex.DecodeString(hexString)
	if err != nil {
		return "", fmt.Errorf("base64url: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

type Templates struct {
	Readme *template.Template
	Code   *template.Template
}

// Registry holds parsed templates for every key system.
type Registry struct {
	source string
	sets   map[types.KeySystem]Templates
}

// NewRegistry parses templates from dir, or the built-in ones when dir is empty.
func NewRegistry(dir string) (*Registry, error) {
	var fsys fs.FS
	source := dir
	if dir == "" {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		fsys, source = sub, "embedded"
	} else {
		fsys = os.DirFS(dir)
	}

	r := &Registry{
		source: source,
		sets:   map[types.KeySystem]Templates{},
	}

	for _, ks := range keySystems {
		readme, err := parse(fsys, source, ReadmeTemplateName(ks))
		if err != nil {
			return nil, err
		}

		code, err := parse(fsys, source, CodeTemplateName(ks))
		if err != nil {
			return nil, err
		}

		r.sets[ks] = Templates{Readme: readme, Code: code}
	}

	return r, nil
}

func ReadmeTemplateName(ks types.KeySystem) string {
	return fmt.Sprintf("%s.readme.md.tmpl", ks)
}

func CodeTemplateName(ks types.KeySystem) string {
	return fmt.Sprintf("%s.sample-code.js.tmpl", ks)
}

func parse(fsys fs.FS, source, name string) (*template.Template, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, &types.IOError{Op: "read template", Path: source + "/" + name, Err: err}
	}

	tmpl, err := template.New(name).Funcs(Funcs).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	return tmpl, nil
}

func (r *Registry) Source() string {
	return r.source
}

func (r *Registry) Lookup(ks types.KeySystem) (Templates, error) {
	set, ok := r.sets[ks]
	if !ok {
		return Templates{}, &types.ConfigurationError{Field: "key-system", Value: string(ks), Reason: "no templates registered"}
	}
	return set, nil
}
