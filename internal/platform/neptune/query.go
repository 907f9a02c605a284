package neptune

import (
	"fmt"
	"strings"
)

// Property is one key/value pair attached to a vertex or edge at creation.
// Order is preserved in the generated query.
type Property struct {
	Name  string
	Value string
}

// Escape renders an arbitrary identifier safe inside a single-quoted Gremlin
// string literal. Source identifiers are user-controlled, so every value that
// reaches a query must pass through here; nothing else in the package embeds
// raw strings.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

// UpsertVertexQuery builds an idempotent existence-check-then-create vertex
// upsert: repeated execution with identical arguments stores exactly one
// vertex.
func UpsertVertexQuery(label, keyProp, key string, props []Property) string {
	var b strings.Builder
	fmt.Fprintf(&b, "g.V().has('%s', '%s', '%s')", Escape(label), Escape(keyProp), Escape(key))
	b.WriteString(".fold().coalesce(unfold(), ")
	fmt.Fprintf(&b, "addV('%s')", Escape(label))
	fmt.Fprintf(&b, ".property('%s', '%s')", Escape(keyProp), Escape(key))
	for _, p := range props {
		fmt.Fprintf(&b, ".property('%s', '%s')", Escape(p.Name), Escape(p.Value))
	}
	b.WriteString(")")
	return b.String()
}

// UpsertEdgeQuery builds an idempotent edge upsert between two existing
// vertices identified by keyProp under vertexLabel; the edge is created only
// when no label-matching edge already connects the pair.
func UpsertEdgeQuery(label, vertexLabel, keyProp, fromKey, toKey string, props []Property) string {
	var b strings.Builder
	fmt.Fprintf(&b, "g.V().has('%s', '%s', '%s').as('p')", Escape(vertexLabel), Escape(keyProp), Escape(fromKey))
	fmt.Fprintf(&b, ".V().has('%s', '%s', '%s')", Escape(vertexLabel), Escape(keyProp), Escape(toKey))
	b.WriteString(".coalesce(")
	fmt.Fprintf(&b, "inE('%s').where(outV().as('p')), ", Escape(label))
	fmt.Fprintf(&b, "addE('%s').from('p')", Escape(label))
	for _, p := range props {
		fmt.Fprintf(&b, ".property('%s', '%s')", Escape(p.Name), Escape(p.Value))
	}
	b.WriteString(")")
	return b.String()
}

// DropAllQuery is the destructive full-refresh clear.
func DropAllQuery() string {
	return "g.V().drop()"
}

func CountVerticesQuery() string {
	return "g.V().count()"
}

func CountVerticesByQuery(prop, value string) string {
	return fmt.Sprintf("g.V().has('%s', '%s').count()", Escape(prop), Escape(value))
}

func CountEdgesQuery() string {
	return "g.E().count()"
}

func CountEdgesByQuery(prop, value string) string {
	return fmt.Sprintf("g.E().has('%s', '%s').count()", Escape(prop), Escape(value))
}

// SampleVerticesQuery projects up to n vertices into (name, source) pairs for
// verification output.
func SampleVerticesQuery(n int, nameProp, sourceProp string) string {
	if n <= 0 {
		n = 5
	}
	return fmt.Sprintf(
		"g.V().limit(%d).project('name', 'source').by('%s').by('%s')",
		n, Escape(nameProp), Escape(sourceProp),
	)
}
