package envelope

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/envelope.schema.json
var schemaDocument []byte

const schemaName = "envelope.schema.json"

// SchemaCache compiles the envelope schema once and answers validation
// queries. The zero value is ready to use.
type SchemaCache struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

func (c *SchemaCache) compile() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaName, bytes.NewReader(schemaDocument)); err != nil {
		c.err = fmt.Errorf("loading envelope schema: %w", err)
		return
	}
	c.schema, c.err = compiler.Compile(schemaName)
}

// Validate checks a decoded JSON document against the envelope schema and
// returns one human-readable problem per violation. An empty slice means the
// document conforms.
func (c *SchemaCache) Validate(doc any) []string {
	c.once.Do(c.compile)
	if c.err != nil {
		return []string{c.err.Error()}
	}

	err := c.schema.Validate(doc)
	if err == nil {
		return nil
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var problems []string
	for _, unit := range verr.BasicOutput().Errors {
		if unit.Error == "" {
			continue
		}
		loc := unit.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		problems = append(problems, fmt.Sprintf("%s: %s", loc, unit.Error))
	}
	if len(problems) == 0 {
		problems = []string{verr.Error()}
	}
	return problems
}
