package neptune

import (
	"strings"
	"testing"
)

func TestEscapeQuotesAndBackslashes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"orders", "orders"},
		{"o'brien_orders", `o\'brien_orders`},
		{`path\to\table`, `path\\to\\table`},
		{`both\'mixed`, `both\\\'mixed`},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Escape(tc.in); got != tc.want {
			t.Fatalf("Escape(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}

func TestUpsertVertexQueryShape(t *testing.T) {
	q := UpsertVertexQuery("lineage_node", "node_name", "orders", []Property{
		{Name: "source_type", Value: "athena"},
	})

	want := "g.V().has('lineage_node', 'node_name', 'orders')" +
		".fold().coalesce(unfold(), addV('lineage_node')" +
		".property('node_name', 'orders')" +
		".property('source_type', 'athena'))"
	if q != want {
		t.Fatalf("vertex query:\nwant=%s\ngot= %s", want, q)
	}
}

func TestUpsertVertexQueryEscapesKey(t *testing.T) {
	q := UpsertVertexQuery("lineage_node", "node_name", "it's", nil)
	if !strings.Contains(q, `'it\'s'`) {
		t.Fatalf("key not escaped: %s", q)
	}
	if strings.Contains(q, "'it's'") {
		t.Fatalf("raw quote leaked into query: %s", q)
	}
}

func TestUpsertEdgeQueryShape(t *testing.T) {
	q := UpsertEdgeQuery("data_flow", "lineage_node", "node_name", "a", "b", []Property{
		{Name: "edge_type", Value: "cross_system"},
	})

	want := "g.V().has('lineage_node', 'node_name', 'a').as('p')" +
		".V().has('lineage_node', 'node_name', 'b')" +
		".coalesce(inE('data_flow').where(outV().as('p')), " +
		"addE('data_flow').from('p').property('edge_type', 'cross_system'))"
	if q != want {
		t.Fatalf("edge query:\nwant=%s\ngot= %s", want, q)
	}
}

func TestCountAndSampleQueries(t *testing.T) {
	if got := DropAllQuery(); got != "g.V().drop()" {
		t.Fatalf("drop query: got=%s", got)
	}
	if got := CountVerticesQuery(); got != "g.V().count()" {
		t.Fatalf("vertex count query: got=%s", got)
	}
	if got := CountEdgesByQuery("edge_type", "cross_system"); got != "g.E().has('edge_type', 'cross_system').count()" {
		t.Fatalf("edge count by query: got=%s", got)
	}
	got := SampleVerticesQuery(3, "node_name", "source_type")
	want := "g.V().limit(3).project('name', 'source').by('node_name').by('source_type')"
	if got != want {
		t.Fatalf("sample query: want=%s got=%s", want, got)
	}
	if got := SampleVerticesQuery(0, "node_name", "source_type"); !strings.Contains(got, "limit(5)") {
		t.Fatalf("sample query default limit: got=%s", got)
	}
}
