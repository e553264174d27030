package server

import (
	"encoding/json"
	"fmt"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed transcript.schema.json
var transcriptSchemaJSON []byte

const transcriptSchemaName = "transcript.schema.json"

func compileTranscriptSchema() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(transcriptSchemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("parse transcript schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(transcriptSchemaName, doc); err != nil {
		return nil, fmt.Errorf("add transcript schema: %w", err)
	}

	schema, err := compiler.Compile(transcriptSchemaName)
	if err != nil {
		return nil, fmt.Errorf("compile transcript schema: %w", err)
	}
	return schema, nil
}
