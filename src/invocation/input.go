// Package invocation reads the input record of one invocation and writes
// the output record that answers it.
package invocation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"commvault-ops/src/cvapi"
	"commvault-ops/src/dispatch"
	"commvault-ops/src/entities"
	"commvault-ops/src/session"
)

//go:embed schema.json
var schema []byte

// LoginOperation is the reserved operation name that creates a session.
const LoginOperation = "login"

// Input is one invocation record.
type Input struct {
	Operation  string
	EntityType string
	Entity     map[string]any
	Commcell   map[string]any
	Args       map[string]any
	// CheckMode comes from Ansible's _ansible_check_mode.
	CheckMode bool
}

// IsLogin reports whether the record asks for a login. The match is
// case-insensitive.
func (in Input) IsLogin() bool {
	return strings.EqualFold(strings.TrimSpace(in.Operation), LoginOperation)
}

// Names converts the entity map into resolver names.
func (in Input) Names() (entities.Names, error) {
	return entities.NamesFromMap(in.Entity)
}

// Credentials reads the login data: the entity map of a login record, the
// commcell map of any other.
func (in Input) Credentials() (cvapi.Credentials, error) {
	m := in.Commcell
	if in.IsLogin() {
		m = in.Entity
	}
	creds, err := session.CredentialsFromMap(m)
	if err != nil {
		return cvapi.Credentials{}, &dispatch.ValidationError{Err: err}
	}
	return creds, nil
}

// ReadFile loads a record from path, or from stdin when path is "-".
func ReadFile(path string, stdin io.Reader) (Input, error) {
	var data []byte
	var err error
	switch {
	case path == "-" && stdin == nil:
		return Input{}, &dispatch.ValidationError{Err: errors.New("read input: no stdin")}
	case path == "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return Input{}, fmt.Errorf("read input: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes and validates a record. ext selects YAML for ".yaml" and
// ".yml"; anything else is read as JSON with comments allowed, falling back
// to YAML when the data is not a JSON object.
func Parse(data []byte, ext string) (Input, error) {
	doc, err := decode(data, strings.ToLower(ext))
	if err != nil {
		return Input{}, &dispatch.ValidationError{Err: err}
	}
	return FromMap(doc)
}

// FromMap validates an already decoded record.
func FromMap(doc map[string]any) (Input, error) {
	if err := Validate(doc); err != nil {
		return Input{}, err
	}
	return fromDoc(doc), nil
}

func decode(data []byte, ext string) (map[string]any, error) {
	var doc map[string]any
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		stripped := jsonc.ToJSON(data)
		if err := json.Unmarshal(stripped, &doc); err != nil {
			if !strings.HasPrefix(strings.TrimSpace(string(stripped)), "{") {
				if yerr := yaml.Unmarshal(data, &doc); yerr == nil && doc != nil {
					return doc, nil
				}
			}
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	if doc == nil {
		return nil, errors.New("input record is empty")
	}
	return doc, nil
}

// Validate checks a decoded record against the invocation schema. Every
// violation is reported.
func Validate(doc map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate input: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs *multierror.Error
	for _, e := range result.Errors() {
		errs = multierror.Append(errs, errors.New(e.String()))
	}
	errs.ErrorFormat = func(es []error) string {
		parts := make([]string, len(es))
		for i, e := range es {
			parts[i] = e.Error()
		}
		return strings.Join(parts, "; ")
	}
	return &dispatch.ValidationError{Err: errs}
}

func fromDoc(doc map[string]any) Input {
	in := Input{
		Operation:  stringOf(doc["operation"]),
		EntityType: stringOf(doc["entity_type"]),
		Entity:     mapOf(doc["entity"]),
		Commcell:   mapOf(doc["commcell"]),
		Args:       mapOf(doc["args"]),
	}
	in.CheckMode, _ = doc["_ansible_check_mode"].(bool)
	return in
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func mapOf(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
