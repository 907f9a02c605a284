package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lineagesync/internal/platform/logger"
)

// ErrNoSources is returned when a manifest directory yields fewer than two
// source documents; merging needs at least two systems to reconcile.
var ErrNoSources = fmt.Errorf("manifest: need at least two source manifests")

// Source is one catalog system's normalized lineage contribution.
type Source struct {
	// Tag identifies the reporting system, e.g. "athena" or "redshift".
	Tag string
	// Lineage maps node id to downstream child ids.
	Lineage map[string][]string
	// Attrs holds scalar dataset attributes keyed by node id (catalog-raw
	// manifests only).
	Attrs map[string]map[string]string
	// ColumnFlows holds column-level lineage (catalog-raw manifests only).
	ColumnFlows []ColumnFlow
}

// ColumnFlow is a single column-to-column dependency.
type ColumnFlow struct {
	SourceDataset  string `json:"source_dataset"`
	SourceColumn   string `json:"source_column"`
	TargetDataset  string `json:"target_dataset"`
	TargetColumn   string `json:"target_column"`
	Transformation string `json:"transformation"`
}

// rawManifest covers the three accepted document shapes. Exactly one of
// LineageMap, ChildMap or Lineage is expected to be populated.
type rawManifest struct {
	LineageMap    map[string][]string   `json:"lineage_map" yaml:"lineage_map"`
	ChildMap      map[string][]string   `json:"child_map" yaml:"child_map"`
	Lineage       map[string]rawDataset `json:"lineage" yaml:"lineage"`
	ColumnLineage map[string]any        `json:"column_lineage" yaml:"column_lineage"`
}

type rawDataset struct {
	Downstream []string       `json:"downstream" yaml:"downstream"`
	Schema     map[string]any `json:"schema" yaml:"schema"`
}

type Reader struct {
	log *logger.Logger
}

func NewReader(log *logger.Logger) *Reader {
	return &Reader{log: log.With("service", "ManifestReader")}
}

// LoadDir loads every `<tag>_manifest.json|yaml|yml` in dir, one source per
// file, tags sorted for a deterministic merge order.
func (r *Reader) LoadDir(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest: read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if tagFromFilename(e.Name()) != "" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		src, err := r.LoadFile(p, tagFromFilename(filepath.Base(p)))
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) < 2 {
		return nil, fmt.Errorf("%w: found %d in %s", ErrNoSources, len(sources), dir)
	}
	return sources, nil
}

// LoadFile loads a single manifest document and normalizes it into a Source.
func (r *Reader) LoadFile(path, tag string) (Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var doc rawManifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &doc)
	default:
		err = json.Unmarshal(raw, &doc)
	}
	if err != nil {
		return Source{}, fmt.Errorf("manifest: decode %s: %w", path, err)
	}

	src, err := r.normalize(doc, tag)
	if err != nil {
		return Source{}, fmt.Errorf("manifest: %s: %w", path, err)
	}
	r.log.Info("Loaded manifest",
		"path", path,
		"source", tag,
		"nodes", len(src.Lineage),
		"column_flows", len(src.ColumnFlows),
	)
	return src, nil
}

func (r *Reader) normalize(doc rawManifest, tag string) (Source, error) {
	src := Source{Tag: tag}

	switch {
	case len(doc.LineageMap) > 0:
		// Pre-merged shape: identifiers are already canonical.
		src.Lineage = copyAdjacency(doc.LineageMap)

	case len(doc.ChildMap) > 0:
		// dbt shape: node ids like "model.project.orders" collapse to their
		// final dot segment.
		src.Lineage = make(map[string][]string, len(doc.ChildMap))
		for parent, children := range doc.ChildMap {
			normalized := make([]string, 0, len(children))
			for _, child := range children {
				normalized = append(normalized, NormalizeNodeID(child))
			}
			src.Lineage[NormalizeNodeID(parent)] = normalized
		}

	case len(doc.Lineage) > 0:
		// Catalog shape: dataset ids (tables, s3 URIs) stay intact; dots are
		// structural there.
		src.Lineage = make(map[string][]string, len(doc.Lineage))
		src.Attrs = make(map[string]map[string]string, len(doc.Lineage))
		for dataset, info := range doc.Lineage {
			src.Lineage[dataset] = append([]string(nil), info.Downstream...)
			if attrs := flattenSchema(info.Schema); len(attrs) > 0 {
				src.Attrs[dataset] = attrs
			}
		}
		src.ColumnFlows = parseColumnLineage(doc.ColumnLineage)

	default:
		return Source{}, fmt.Errorf("no lineage_map, child_map or lineage section for source %q", tag)
	}

	return src, nil
}

// NormalizeNodeID collapses a dbt-style identifier to its final dot-separated
// segment: "model.project.orders" -> "orders".
func NormalizeNodeID(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[i+1:]
	}
	return id
}

func tagFromFilename(name string) string {
	base := name
	for _, suffix := range []string{"_manifest.json", "_manifest.yaml", "_manifest.yml"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return ""
}

func copyAdjacency(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// flattenSchema keeps scalar schema values as strings and flattens the
// "statistics" sub-map one level; the "fields" list is column detail and is
// not a dataset attribute.
func flattenSchema(schema map[string]any) map[string]string {
	if len(schema) == 0 {
		return nil
	}
	out := make(map[string]string)
	for key, val := range schema {
		switch key {
		case "fields":
			continue
		case "statistics":
			if stats, ok := val.(map[string]any); ok {
				for sk, sv := range stats {
					if s := scalarString(sv); s != "" {
						out[sk] = s
					}
				}
			}
		default:
			if s := scalarString(val); s != "" {
				out[key] = s
			}
		}
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return fmt.Sprintf("%t", t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}

func parseColumnLineage(raw map[string]any) []ColumnFlow {
	if len(raw) == 0 {
		return nil
	}

	targets := make([]string, 0, len(raw))
	for target := range raw {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var flows []ColumnFlow
	for _, target := range targets {
		i := strings.LastIndex(target, ".")
		if i <= 0 {
			continue
		}
		targetDataset, targetColumn := target[:i], target[i+1:]

		appendFlow := func(entry map[string]any) {
			srcTable, _ := entry["source_table"].(string)
			srcColumn, _ := entry["source_column"].(string)
			if srcTable == "" || srcColumn == "" {
				return
			}
			transformation, _ := entry["transformation"].(string)
			if transformation == "" {
				transformation = "direct"
			}
			flows = append(flows, ColumnFlow{
				SourceDataset:  srcTable,
				SourceColumn:   srcColumn,
				TargetDataset:  targetDataset,
				TargetColumn:   targetColumn,
				Transformation: transformation,
			})
		}

		switch entries := raw[target].(type) {
		case []any:
			for _, e := range entries {
				if m, ok := coerceMap(e); ok {
					appendFlow(m)
				}
			}
		default:
			if m, ok := coerceMap(entries); ok {
				appendFlow(m)
			}
		}
	}
	return flows
}

func coerceMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out, true
	default:
		return nil, false
	}
}
