package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Reply holds the provider's values for each output field. A nil value means
// the provider omitted the field or returned null.
type Reply map[string]*float64

// replyParser turns raw provider text into a Reply for one signature
type replyParser struct {
	outputs []string
	schema  *jsonschema.Schema
}

func newReplyParser(sig Signature) (*replyParser, error) {
	b, err := json.Marshal(sig.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reply.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("adding schema: %w", err)
	}
	schema, err := compiler.Compile("reply.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	return &replyParser{
		outputs: sig.OutputNames(),
		schema:  schema,
	}, nil
}

// parse extracts the JSON object from text and validates it
func (p *replyParser) parse(text string) (Reply, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in reply")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in reply")
	}
	text = text[startIdx : endIdx+1]

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	for _, name := range p.outputs {
		if v, ok := doc[name]; ok {
			doc[name] = coerceNumber(v)
		}
	}

	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("reply does not match schema: %w", err)
	}

	reply := make(Reply, len(p.outputs))
	for _, name := range p.outputs {
		if f, ok := doc[name].(float64); ok {
			reply[name] = &f
		} else {
			reply[name] = nil
		}
	}
	return reply, nil
}

// thousandsGrouped matches amounts like "1,234.50": comma-separated groups of
// three digits and a "." decimal part
var thousandsGrouped = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+\.\d+$`)

// coerceNumber turns numeric strings like "1,234.50" or "$23.00" into numbers.
// Empty and "null" strings become nil. Anything else, including decimal-comma
// amounts like "100,00", is returned unchanged so schema validation rejects it.
func coerceNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '$', '€', '£':
			return -1
		}
		return r
	}, s)
	if thousandsGrouped.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return v
	}
	return f
}
