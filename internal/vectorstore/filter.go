package vectorstore

import "github.com/qdrant/go-client/qdrant"

// Filter is a typed payload filter, serialized to the Qdrant wire
// format only at the client boundary.
type Filter struct {
	Must   []Condition
	Should []Condition
}

// Condition is a tagged union: exactly one field is set.
type Condition struct {
	// Match is an exact keyword match on a payload field.
	Match *MatchCondition

	// Text is a full-text match against an indexed text field.
	Text *TextCondition
}

// MatchCondition matches a payload field against an exact keyword.
type MatchCondition struct {
	Key   string
	Value string
}

// TextCondition matches a payload field against a full-text query.
type TextCondition struct {
	Key   string
	Query string
}

// NewFilter returns a filter requiring all the given conditions.
func NewFilter(must ...Condition) *Filter {
	if len(must) == 0 {
		return nil
	}
	return &Filter{Must: must}
}

// MatchKeyword builds an exact-match condition.
func MatchKeyword(key, value string) Condition {
	return Condition{Match: &MatchCondition{Key: key, Value: value}}
}

// MatchText builds a full-text condition.
func MatchText(key, query string) Condition {
	return Condition{Text: &TextCondition{Key: key, Query: query}}
}

// toQdrant serializes the filter to the wire representation.
func (f *Filter) toQdrant() *qdrant.Filter {
	if f == nil {
		return nil
	}

	out := &qdrant.Filter{}
	for _, c := range f.Must {
		if qc := c.toQdrant(); qc != nil {
			out.Must = append(out.Must, qc)
		}
	}
	for _, c := range f.Should {
		if qc := c.toQdrant(); qc != nil {
			out.Should = append(out.Should, qc)
		}
	}
	if len(out.Must) == 0 && len(out.Should) == 0 {
		return nil
	}
	return out
}

func (c Condition) toQdrant() *qdrant.Condition {
	switch {
	case c.Match != nil:
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: c.Match.Key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: c.Match.Value},
					},
				},
			},
		}
	case c.Text != nil:
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: c.Text.Key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Text{Text: c.Text.Query},
					},
				},
			},
		}
	default:
		return nil
	}
}
