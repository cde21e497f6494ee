// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the generated config schema.
const SchemaID = "https://hourlog.dev/schemas/config.schema.json"

// GenerateSchema reflects the Config struct into a JSON Schema document.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		FieldNameTag:               "koanf",
		AllowAdditionalProperties:  false,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "hourlog configuration"
	schema.Description = "Schema for hourlog config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("config.schema.json", doc); err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	sch, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return sch, nil
})

// ValidateYAML checks a config file against the schema. An empty document is
// valid.
func ValidateYAML(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeInvalid).Wrapf(err, "invalid YAML")
	}
	if doc == nil {
		return nil
	}

	// Round-trip through JSON so the validator sees JSON types only.
	raw, err := json.Marshal(doc)
	if err != nil {
		return oops.Code(CodeInvalid).Wrapf(err, "config is not representable as JSON")
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code(CodeInvalid).Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code(CodeInvalid).Wrapf(err, "schema validation failed")
	}
	return nil
}
