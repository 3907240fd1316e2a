package receipt

import (
	"fmt"
	"strings"

	"spendly/internal/core"
)

// SchemaType mirrors the JSON schema primitive names structured-output
// backends accept.
type SchemaType string

const (
	SchemaObject SchemaType = "OBJECT"
	SchemaNumber SchemaType = "NUMBER"
	SchemaString SchemaType = "STRING"
)

// Schema is a backend-neutral description of the expected reply.
type Schema struct {
	Type        SchemaType
	Description string
	Enum        []string
	Properties  map[string]*Schema
	Required    []string
}

// Instruction is the fixed prompt sent with every receipt image.
var Instruction = buildInstruction(core.Categories())

// OutputSchema requires a numeric amount, a description and a category code
// from the known set.
var OutputSchema = buildSchema(core.Categories())

func buildInstruction(categories []core.Category) string {
	codes := make([]string, len(categories))
	for i, c := range categories {
		codes[i] = string(c)
	}
	return fmt.Sprintf(`Read this receipt or invoice. Extract the total amount paid (amount), the store name or a short summary of what was bought (description), and pick the single best matching category from: %s.
Restaurants and cafes are food; supermarkets and household goods are shopping.
Reply with JSON only.`, strings.Join(codes, ", "))
}

func buildSchema(categories []core.Category) *Schema {
	codes := make([]string, len(categories))
	for i, c := range categories {
		codes[i] = string(c)
	}
	return &Schema{
		Type: SchemaObject,
		Properties: map[string]*Schema{
			"amount":      {Type: SchemaNumber, Description: "Total amount on the receipt"},
			"description": {Type: SchemaString, Description: "Store name or a short summary of the purchase"},
			"category":    {Type: SchemaString, Description: "One of the provided category codes", Enum: codes},
		},
		Required: []string{"amount", "description", "category"},
	}
}
