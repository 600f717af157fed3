package extraction

import (
	"fmt"
	"strings"
)

// FieldKind is the value type a signature field carries
type FieldKind string

const (
	KindImage  FieldKind = "image"
	KindNumber FieldKind = "number"
)

// Field describes one named input or output of an LLM call
type Field struct {
	Name        string
	Description string
	Kind        FieldKind
}

// Signature is a declarative description of one LLM call: what goes in and
// what shape is expected back. It has no behavior of its own beyond rendering
// itself for a provider.
type Signature struct {
	Instructions string
	Inputs       []Field
	Outputs      []Field
}

// Output field names for the invoice signature
const (
	FieldTotalNetWorth = "total_net_worth"
	FieldTotalVAT      = "total_vat"
	FieldGrossWorth    = "gross_worth"
)

// InvoiceSignature extracts the three invoice totals from an invoice image.
// The descriptions guide the model; they are not a numeric contract.
var InvoiceSignature = Signature{
	Instructions: "Extract structured data from invoice images.",
	Inputs: []Field{
		{Name: "input_image", Description: "The invoice image to analyze", Kind: KindImage},
	},
	Outputs: []Field{
		{Name: FieldTotalNetWorth, Description: "Total Net Worth (excluding VAT)", Kind: KindNumber},
		{Name: FieldTotalVAT, Description: "Total VAT amount", Kind: KindNumber},
		{Name: FieldGrossWorth, Description: "Gross Worth (including VAT)", Kind: KindNumber},
	},
}

// OutputNames returns the output field names in declaration order
func (s Signature) OutputNames() []string {
	names := make([]string, 0, len(s.Outputs))
	for _, f := range s.Outputs {
		names = append(names, f.Name)
	}
	return names
}

// Prompt renders the signature as the text part sent alongside the image
func (s Signature) Prompt() string {
	var b strings.Builder
	b.WriteString(s.Instructions)
	b.WriteString("\n\n")

	for _, in := range s.Inputs {
		fmt.Fprintf(&b, "Input `%s` (%s): %s\n", in.Name, in.Kind, in.Description)
	}

	b.WriteString("\nReturn ONLY a JSON object with these keys:\n")
	for _, out := range s.Outputs {
		fmt.Fprintf(&b, "- %q (%s): %s\n", out.Name, out.Kind, out.Description)
	}

	b.WriteString(`
Important:
- Values must be JSON numbers, not strings, without currency symbols
- If you cannot find a value, use null for that key
- Do not include any text before or after the JSON
- Do not use markdown code blocks`)

	return b.String()
}

// JSONSchema returns a JSON schema for the expected reply. No output is
// required and every output may be null; missing values are handled by the
// caller.
func (s Signature) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Outputs))
	for _, out := range s.Outputs {
		props[out.Name] = map[string]any{
			"type":        schemaType(out.Kind),
			"description": out.Description,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func schemaType(kind FieldKind) []string {
	switch kind {
	case KindNumber:
		return []string{"number", "null"}
	default:
		return []string{"string", "null"}
	}
}
