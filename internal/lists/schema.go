package lists

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed state.schema.json
var stateSchemaJSON []byte

const stateSchemaURL = "state.schema.json"

var (
	stateSchemaOnce sync.Once
	stateSchema     *jsonschema.Schema
	stateSchemaErr  error
)

func compiledStateSchema() (*jsonschema.Schema, error) {
	stateSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(stateSchemaURL, bytes.NewReader(stateSchemaJSON)); err != nil {
			stateSchemaErr = fmt.Errorf("load state schema: %w", err)
			return
		}
		stateSchema, stateSchemaErr = compiler.Compile(stateSchemaURL)
	})
	return stateSchema, stateSchemaErr
}

// IntegrityError reports serialized state that cannot be trusted.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid list state"
	}
	return "invalid list state: " + strings.Join(e.Problems, "; ")
}

// Decode parses serialized state read back from a session backend. The JSON
// must match the embedded schema, and ids and list names must be unique.
func Decode(raw []byte) (Lists, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Lists{}, nil
	}

	schema, err := compiledStateSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &IntegrityError{Problems: []string{"malformed JSON"}}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaIntegrityError(err)
	}

	var out Lists
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode lists: %w", err)
	}
	if problems := out.uniquenessProblems(); len(problems) > 0 {
		return nil, &IntegrityError{Problems: problems}
	}
	for i := range out {
		if out[i].Todos == nil {
			out[i].Todos = []Todo{}
		}
	}
	return out, nil
}

func schemaIntegrityError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &IntegrityError{Problems: []string{err.Error()}}
	}
	result := &IntegrityError{}
	collectSchemaProblems(result, ve)
	return result
}

func collectSchemaProblems(result *IntegrityError, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		result.Problems = append(result.Problems, location+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaProblems(result, cause)
	}
}

func (l Lists) uniquenessProblems() []string {
	var problems []string
	listIDs := make(map[int]struct{}, len(l))
	names := make(map[string]struct{}, len(l))
	for _, list := range l {
		if _, dup := listIDs[list.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate list id %d", list.ID))
		}
		listIDs[list.ID] = struct{}{}
		if _, dup := names[list.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate list name %q", list.Name))
		}
		names[list.Name] = struct{}{}

		todoIDs := make(map[int]struct{}, len(list.Todos))
		for _, todo := range list.Todos {
			if _, dup := todoIDs[todo.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate todo id %d in list %d", todo.ID, list.ID))
			}
			todoIDs[todo.ID] = struct{}{}
		}
	}
	return problems
}
