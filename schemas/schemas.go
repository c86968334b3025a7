// Package schemas embeds the JSON Schemas for documents churnkit reads and
// writes.
package schemas

import _ "embed"

//go:embed registry.schema.json
var RegistrySchemaJSON string

//go:embed config.schema.json
var ConfigSchemaJSON string

//go:embed mapping.schema.json
var MappingSchemaJSON string

//go:embed suggestions.schema.json
var SuggestionsSchemaJSON string

//go:embed domain.schema.json
var DomainSchemaJSON string

//go:embed actions.schema.json
var ActionsSchemaJSON string
