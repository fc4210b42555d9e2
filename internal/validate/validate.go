// Package validate checks request documents against embedded JSON schemas.
package validate

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names.
const (
	Posting       = "posting"
	PostingUpdate = "posting_update"
	Profile       = "profile"
	Signup        = "signup"
	Login         = "login"
)

var schemas = map[string]*gojsonschema.Schema{}

func init() {
	for _, name := range []string{Posting, PostingUpdate, Profile, Signup, Login} {
		data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			panic(fmt.Sprintf("validate: reading %s schema: %v", name, err))
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			panic(fmt.Sprintf("validate: compiling %s schema: %v", name, err))
		}
		schemas[name] = s
	}
}

// Error lists every violation found in a document.
type Error struct {
	Schema string
	Fields []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Schema, strings.Join(e.Fields, "; "))
}

// JSON validates raw JSON bytes against the named schema. It returns
// *Error for schema violations and a plain error for malformed input.
func JSON(schema string, doc []byte) error {
	return validate(schema, gojsonschema.NewBytesLoader(doc))
}

// Value validates any JSON-encodable Go value against the named schema.
func Value(schema string, v any) error {
	return validate(schema, gojsonschema.NewGoLoader(v))
}

func validate(schema string, doc gojsonschema.JSONLoader) error {
	s, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	res, err := s.Validate(doc)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	if res.Valid() {
		return nil
	}
	fields := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		fields = append(fields, e.Field()+": "+e.Description())
	}
	sort.Strings(fields)
	return &Error{Schema: schema, Fields: fields}
}
