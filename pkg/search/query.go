package search

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidQuery = errors.New("invalid query")

// Term matches documents whose Field equals Value. A slice Value matches any of its elements and a
// nil Value matches documents without the field.
type Term struct {
	Field string
	Value interface{}
}

// Query is a conjunction of terms. The zero Query matches every document.
type Query struct {
	Terms []Term
}

func All() Query {
	return Query{}
}

func (q Query) IsAll() bool {
	return len(q.Terms) == 0
}

// ParseQuery parses a dict literal such as {'court_id': 'haw', 'status': 1}. The literal is read as
// a YAML flow mapping so single or double quoted strings, numbers, booleans, None and lists work.
func ParseQuery(expr string) (Query, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(expr), &root); err != nil {
		return Query{}, fmt.Errorf("%w %q: %v", ErrInvalidQuery, expr, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return Query{}, fmt.Errorf("%w %q: expected a mapping of field names to values", ErrInvalidQuery, expr)
	}
	mapping := root.Content[0]
	if len(mapping.Content) == 0 {
		return Query{}, fmt.Errorf("%w %q: no fields given", ErrInvalidQuery, expr)
	}

	var q Query
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, val := mapping.Content[i], mapping.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return Query{}, fmt.Errorf("%w %q: field names must be strings", ErrInvalidQuery, expr)
		}
		v, err := termValue(val)
		if err != nil {
			return Query{}, fmt.Errorf("%w %q: field %s: %v", ErrInvalidQuery, expr, key.Value, err)
		}
		q.Terms = append(q.Terms, Term{Field: key.Value, Value: v})
	}
	sort.SliceStable(q.Terms, func(i, j int) bool { return q.Terms[i].Field < q.Terms[j].Field })
	return q, nil
}

func termValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
			return n.Value, nil
		}
		if n.Value == "None" || n.Tag == "!!null" {
			return nil, nil
		}
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, errors.New("lists may only hold plain values")
			}
			v, err := termValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if len(out) == 0 {
			return nil, errors.New("empty list")
		}
		return out, nil
	}
	return nil, errors.New("unsupported value")
}

// solrValue renders a single value in Solr standard query parser syntax
func solrValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(t) + `"`
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return solrValue(fmt.Sprint(v))
}

// Solr renders the query for the Solr standard query parser
func (q Query) Solr() string {
	if q.IsAll() {
		return "*:*"
	}
	parts := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		switch v := t.Value.(type) {
		case nil:
			parts = append(parts, fmt.Sprintf("(*:* -%s:[* TO *])", t.Field))
		case []interface{}:
			alts := make([]string, len(v))
			for i, a := range v {
				alts[i] = solrValue(a)
			}
			parts = append(parts, fmt.Sprintf("%s:(%s)", t.Field, strings.Join(alts, " OR ")))
		default:
			parts = append(parts, t.Field+":"+solrValue(v))
		}
	}
	return strings.Join(parts, " AND ")
}

// DSL renders the query in the elasticsearch / opensearch query DSL
func (q Query) DSL() map[string]interface{} {
	if q.IsAll() {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	var filter, mustNot []interface{}
	for _, t := range q.Terms {
		switch v := t.Value.(type) {
		case nil:
			mustNot = append(mustNot, map[string]interface{}{"exists": map[string]interface{}{"field": t.Field}})
		case []interface{}:
			filter = append(filter, map[string]interface{}{"terms": map[string]interface{}{t.Field: v}})
		case string:
			filter = append(filter, map[string]interface{}{"match_phrase": map[string]interface{}{t.Field: v}})
		default:
			filter = append(filter, map[string]interface{}{"term": map[string]interface{}{t.Field: v}})
		}
	}
	b := map[string]interface{}{}
	if len(filter) > 0 {
		b["filter"] = filter
	}
	if len(mustNot) > 0 {
		b["must_not"] = mustNot
	}
	return map[string]interface{}{"bool": b}
}

func (q Query) String() string {
	return q.Solr()
}
