// Package openapi derives model descriptors from the backend's OpenAPI
// document. It is the offline fallback: when the admin descriptor endpoint is
// unreachable the CLI can still build forms and lists for the component
// schemas the document declares.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// Parser converts OpenAPI component schemas into admin model descriptors.
type Parser struct {
	resolveRefs bool
}

// Option configures the parser.
type Option func(*Parser)

// WithExternalRefs allows the loader to follow external references.
func WithExternalRefs() Option {
	return func(p *Parser) { p.resolveRefs = true }
}

// New constructs a Parser.
func New(options ...Option) *Parser {
	p := &Parser{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(p)
	}
	return p
}

// Descriptors parses the raw document and returns one descriptor per
// component schema, keyed by model name.
func (p *Parser) Descriptors(ctx context.Context, raw []byte) (map[string]schema.Schema, error) {
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{
		Context:               ctx,
		IsExternalRefsAllowed: p.resolveRefs,
	}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return nil, errors.New("openapi: document declares no component schemas")
	}

	out := make(map[string]schema.Schema, len(doc.Components.Schemas))
	for name, ref := range doc.Components.Schemas {
		if ref == nil || ref.Value == nil || !ref.Value.Type.Is(openapi3.TypeObject) {
			continue
		}
		descriptor, err := p.descriptor(name, ref.Value)
		if err != nil {
			return nil, fmt.Errorf("openapi: schema %q: %w", name, err)
		}
		out[descriptor.ModelName] = descriptor
	}
	if len(out) == 0 {
		return nil, errors.New("openapi: no object schemas extracted")
	}
	return out, nil
}

func (p *Parser) descriptor(name string, s *openapi3.Schema) (schema.Schema, error) {
	modelName := strings.ToLower(name)
	descriptor := schema.Schema{
		ModelName:         modelName,
		VerboseName:       titleOrName(s.Title, name),
		VerboseNamePlural: titleOrName(s.Title, name) + "s",
		APIURL:            modelAPIURL(modelName, s),
		Permissions:       schema.Permissions{Add: true, Change: true, Delete: true, View: true},
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	for _, propName := range sortedProperties(s) {
		ref := s.Properties[propName]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, err := p.field(propName, ref, required[propName])
		if err != nil {
			return schema.Schema{}, err
		}
		descriptor.Fields = append(descriptor.Fields, field)
	}
	if err := descriptor.Validate(); err != nil {
		return schema.Schema{}, err
	}
	return descriptor, nil
}

// sortedProperties orders fields deterministically: id first, then required
// fields, then the rest, alphabetical within each bucket. OpenAPI property
// maps carry no declaration order to preserve.
func sortedProperties(s *openapi3.Schema) []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if (a == "id") != (b == "id") {
			return a == "id"
		}
		if required[a] != required[b] {
			return required[a]
		}
		return a < b
	})
	return names
}

func (p *Parser) field(name string, ref *openapi3.SchemaRef, required bool) (schema.Field, error) {
	value := ref.Value
	field := schema.Field{
		Name:        name,
		VerboseName: titleOrName(value.Title, name),
		HelpText:    value.Description,
		Required:    required,
		Editable:    !value.ReadOnly && name != "id",
	}

	if related, multi := relationTarget(ref); related != "" {
		field.RelatedModel = &schema.RelatedModel{
			ModelName: related,
			APIURL:    fmt.Sprintf("/api/%ss/", related),
		}
		if multi {
			field.Type = "ManyToManyField"
			field.UIComponent = schema.ComponentManyToManySelect
		} else {
			field.Type = "ForeignKey"
			field.UIComponent = schema.ComponentForeignKeySelect
		}
		return field, nil
	}

	field.Type, field.UIComponent = scalarField(value)
	if name == "id" {
		field.Editable = false
		field.UIComponent = schema.ComponentUUID
	}
	for _, choice := range value.Enum {
		field.Choices = append(field.Choices, schema.Choice{
			Value: choice,
			Label: fmt.Sprintf("%v", choice),
		})
	}
	if len(field.Choices) > 0 {
		field.UIComponent = schema.ComponentSelect
	}
	return field, nil
}

// relationTarget reports the referenced component for relation-shaped
// properties: a direct $ref is a foreign key, an array of $refs is
// many-to-many.
func relationTarget(ref *openapi3.SchemaRef) (string, bool) {
	if target := refComponentName(ref.Ref); target != "" {
		return target, false
	}
	value := ref.Value
	if value != nil && value.Type.Is(openapi3.TypeArray) && value.Items != nil {
		if target := refComponentName(value.Items.Ref); target != "" {
			return target, true
		}
	}
	return "", false
}

func refComponentName(ref string) string {
	const prefix = "#/components/schemas/"
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ref, prefix))
}

func scalarField(value *openapi3.Schema) (string, string) {
	switch {
	case value.Type.Is(openapi3.TypeBoolean):
		return "BooleanField", schema.ComponentCheckbox
	case value.Type.Is(openapi3.TypeInteger):
		return "IntegerField", ""
	case value.Type.Is(openapi3.TypeNumber):
		return "DecimalField", ""
	case value.Type.Is(openapi3.TypeObject):
		return "JSONField", schema.ComponentJSONEditor
	case value.Type.Is(openapi3.TypeArray):
		return "JSONField", schema.ComponentJSONEditor
	}

	switch value.Format {
	case "date-time":
		return "DateTimeField", schema.ComponentDateTimePicker
	case "date":
		return "DateField", schema.ComponentDatePicker
	case "uuid":
		return "UUIDField", schema.ComponentUUID
	case "binary", "byte":
		return "FileField", schema.ComponentFileUpload
	case "uri":
		if strings.Contains(strings.ToLower(value.Description), "image") {
			return "ImageField", schema.ComponentImageUpload
		}
		return "URLField", ""
	}
	if value.MaxLength == nil || *value.MaxLength > 255 {
		if value.MaxLength == nil {
			return "CharField", ""
		}
		return "TextField", schema.ComponentTextarea
	}
	return "CharField", ""
}

// modelAPIURL honors the x-api-url extension when present and derives the
// conventional list path otherwise.
func modelAPIURL(modelName string, s *openapi3.Schema) string {
	if s.Extensions != nil {
		if raw, ok := s.Extensions["x-api-url"].(string); ok && raw != "" {
			return raw
		}
	}
	return fmt.Sprintf("/api/%ss/", modelName)
}

func titleOrName(title, name string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
