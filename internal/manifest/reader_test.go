package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/lineagesync/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFileLineageMapShape(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "athena_manifest.json", `{
		"lineage_map": {
			"orders": ["daily_orders", "order_items"],
			"users": []
		}
	}`)

	src, err := NewReader(newTestLogger(t)).LoadFile(path, "athena")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if src.Tag != "athena" {
		t.Fatalf("tag: want=athena got=%s", src.Tag)
	}
	if len(src.Lineage) != 2 {
		t.Fatalf("lineage size: want=2 got=%d", len(src.Lineage))
	}
	children := src.Lineage["orders"]
	if len(children) != 2 || children[0] != "daily_orders" || children[1] != "order_items" {
		t.Fatalf("orders children: got=%v", children)
	}
}

func TestLoadFileDbtChildMapNormalizesIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "dbt_manifest.json", `{
		"child_map": {
			"model.analytics.orders": ["model.analytics.daily_orders", "source.analytics.raw.events"],
			"model.analytics.users": []
		}
	}`)

	src, err := NewReader(newTestLogger(t)).LoadFile(path, "dbt")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	children, ok := src.Lineage["orders"]
	if !ok {
		t.Fatalf("parent id not collapsed to final segment: %v", src.Lineage)
	}
	if len(children) != 2 || children[0] != "daily_orders" || children[1] != "events" {
		t.Fatalf("children not normalized: got=%v", children)
	}
	if _, ok := src.Lineage["users"]; !ok {
		t.Fatalf("users entry missing: %v", src.Lineage)
	}
}

func TestLoadFileCatalogShapeKeepsIDsAndFlattensSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "glue_manifest.json", `{
		"lineage": {
			"analytics.orders": {
				"downstream": ["s3://lake/curated/orders"],
				"schema": {
					"format": "parquet",
					"fields": [{"name": "id", "type": "bigint"}],
					"statistics": {"row_count": 1200, "size_bytes": 4096}
				}
			},
			"s3://lake/curated/orders": {
				"downstream": []
			}
		},
		"column_lineage": {
			"analytics.orders.total": [
				{"source_table": "raw.orders", "source_column": "amount", "transformation": "sum"}
			],
			"analytics.orders.id": {"source_table": "raw.orders", "source_column": "order_id"}
		}
	}`)

	src, err := NewReader(newTestLogger(t)).LoadFile(path, "glue")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, ok := src.Lineage["analytics.orders"]; !ok {
		t.Fatalf("catalog dataset id must stay intact: %v", src.Lineage)
	}
	attrs := src.Attrs["analytics.orders"]
	if attrs["format"] != "parquet" {
		t.Fatalf("schema scalar not kept: %v", attrs)
	}
	if attrs["row_count"] != "1200" || attrs["size_bytes"] != "4096" {
		t.Fatalf("statistics not flattened: %v", attrs)
	}
	if _, ok := attrs["fields"]; ok {
		t.Fatalf("fields list must not become an attribute: %v", attrs)
	}

	if len(src.ColumnFlows) != 2 {
		t.Fatalf("column flows: want=2 got=%d", len(src.ColumnFlows))
	}
	// Targets are sorted, so analytics.orders.id comes first.
	first := src.ColumnFlows[0]
	if first.TargetDataset != "analytics.orders" || first.TargetColumn != "id" {
		t.Fatalf("first flow target: got=%+v", first)
	}
	if first.Transformation != "direct" {
		t.Fatalf("default transformation: want=direct got=%q", first.Transformation)
	}
	second := src.ColumnFlows[1]
	if second.Transformation != "sum" || second.SourceColumn != "amount" {
		t.Fatalf("second flow: got=%+v", second)
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "redshift_manifest.yaml", `
lineage_map:
  daily_orders:
    - orders_summary
  orders_summary: []
`)

	src, err := NewReader(newTestLogger(t)).LoadFile(path, "redshift")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(src.Lineage["daily_orders"]) != 1 || src.Lineage["daily_orders"][0] != "orders_summary" {
		t.Fatalf("yaml lineage: got=%v", src.Lineage)
	}
}

func TestLoadFileRejectsUnknownShape(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "bad_manifest.json", `{"nodes": {}}`)

	if _, err := NewReader(newTestLogger(t)).LoadFile(path, "bad"); err == nil {
		t.Fatalf("manifest without a lineage section must be rejected")
	}
}

func TestLoadDirSortsAndTags(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "redshift_manifest.json", `{"lineage_map": {"b": []}}`)
	writeManifest(t, dir, "athena_manifest.json", `{"lineage_map": {"a": []}}`)
	writeManifest(t, dir, "notes.txt", "ignored")

	sources, err := NewReader(newTestLogger(t)).LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources: want=2 got=%d", len(sources))
	}
	if sources[0].Tag != "athena" || sources[1].Tag != "redshift" {
		t.Fatalf("tag order: got=[%s %s]", sources[0].Tag, sources[1].Tag)
	}
}

func TestLoadDirNeedsTwoSources(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "athena_manifest.json", `{"lineage_map": {"a": []}}`)

	_, err := NewReader(newTestLogger(t)).LoadDir(dir)
	if !errors.Is(err, ErrNoSources) {
		t.Fatalf("want ErrNoSources, got %v", err)
	}
}

func TestNormalizeNodeID(t *testing.T) {
	cases := map[string]string{
		"model.analytics.orders": "orders",
		"orders":                 "orders",
		"a.b":                    "b",
	}
	for in, want := range cases {
		if got := NormalizeNodeID(in); got != want {
			t.Fatalf("NormalizeNodeID(%q): want=%q got=%q", in, want, got)
		}
	}
}
