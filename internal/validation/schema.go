package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spboyer/churnkit/schemas"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

var (
	registrySchema    *jsonschema.Schema
	configSchema      *jsonschema.Schema
	mappingSchema     *jsonschema.Schema
	suggestionsSchema *jsonschema.Schema
	domainSchema      *jsonschema.Schema
	actionsSchema     *jsonschema.Schema
)

func init() {
	registrySchema = mustCompileSchema(schemas.RegistrySchemaJSON, "registry.schema.json")
	configSchema = mustCompileSchema(schemas.ConfigSchemaJSON, "config.schema.json")
	mappingSchema = mustCompileSchema(schemas.MappingSchemaJSON, "mapping.schema.json")
	suggestionsSchema = mustCompileSchema(schemas.SuggestionsSchemaJSON, "suggestions.schema.json")
	domainSchema = mustCompileSchema(schemas.DomainSchemaJSON, "domain.schema.json")
	actionsSchema = mustCompileSchema(schemas.ActionsSchemaJSON, "actions.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateRegistryBytes validates a registry document.
func ValidateRegistryBytes(data []byte) []string {
	return validateJSONBytes(registrySchema, data)
}

// ValidateConfigBytes validates a .churnkit.yaml document.
func ValidateConfigBytes(data []byte) []string {
	return validateYAMLBytes(configSchema, data)
}

// ValidateMappingBytes validates an exported mapping document (JSON or YAML).
func ValidateMappingBytes(data []byte) []string {
	return validateYAMLBytes(mappingSchema, data)
}

// ValidateSuggestionsJSON validates a semantic role suggestion response.
func ValidateSuggestionsJSON(data []byte) []string {
	return validateJSONBytes(suggestionsSchema, data)
}

// ValidateDomainJSON validates a domain detection response.
func ValidateDomainJSON(data []byte) []string {
	return validateJSONBytes(domainSchema, data)
}

// ValidateActionsJSON validates a personalized actions response.
func ValidateActionsJSON(data []byte) []string {
	return validateJSONBytes(actionsSchema, data)
}

func validateJSONBytes(schema *jsonschema.Schema, data []byte) []string {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateAgainstSchema(schema, doc)
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if yamlDoc == nil {
		yamlDoc = map[string]any{}
	}
	return validateAgainstSchema(schema, convertToJSONCompatible(yamlDoc))
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible rewrites yaml.v3 values into the shapes the schema
// validator expects. Non-string map keys are stringified.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case map[any]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[fmt.Sprint(k)] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
