package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/lineagesync/internal/domain"
	"github.com/yungbote/lineagesync/internal/lineage"
	"github.com/yungbote/lineagesync/internal/manifest"
	"github.com/yungbote/lineagesync/internal/platform/logger"
)

// ReportService writes the analysis artifacts of a run: a structured JSON
// report and a flat CSV of node/provenance/child-count rows.
type ReportService struct {
	log    *logger.Logger
	outDir string
}

func NewReportService(outDir string, log *logger.Logger) (*ReportService, error) {
	if log == nil {
		return nil, fmt.Errorf("services: logger required")
	}
	if strings.TrimSpace(outDir) == "" {
		return nil, fmt.Errorf("services: report output directory required")
	}
	return &ReportService{
		log:    log.With("service", "ReportService"),
		outDir: outDir,
	}, nil
}

type jsonReport struct {
	LineageMap  map[string][]string   `json:"lineage_map"`
	NodeSources map[string][]string   `json:"node_sources"`
	Statistics  reportStatistics      `json:"statistics"`
	ColumnFlows []manifest.ColumnFlow `json:"column_flows,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type reportStatistics struct {
	TotalNodes  int            `json:"total_nodes"`
	SourceNodes map[string]int `json:"source_nodes"`
	SharedNodes int            `json:"shared_nodes"`
}

// Write emits both report files and returns their paths. Reports land before
// the write phase starts, so the analysis survives even a run that aborts on
// the initial clear.
func (s *ReportService) Write(g *domain.MergedGraph, flows []manifest.ColumnFlow) (string, string, error) {
	now := time.Now().UTC()
	suffix := now.Format("20060102_150405")

	sources := make(map[string][]string, len(g.Sources))
	for id, ps := range g.Sources {
		sources[id] = ps.Sorted()
	}

	sourceOnly, shared := lineage.Classification(g)
	report := jsonReport{
		LineageMap:  g.Children,
		NodeSources: sources,
		Statistics: reportStatistics{
			TotalNodes:  len(g.Nodes),
			SourceNodes: sourceOnly,
			SharedNodes: shared,
		},
		ColumnFlows: flows,
		Timestamp:   now.Format(time.RFC3339),
	}

	jsonPath := filepath.Join(s.outDir, fmt.Sprintf("merged_lineage_with_sources_%s.json", suffix))
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("services: encode report: %w", err)
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return "", "", fmt.Errorf("services: write report: %w", err)
	}

	csvPath := filepath.Join(s.outDir, fmt.Sprintf("lineage_sources_%s.csv", suffix))
	var b strings.Builder
	b.WriteString("Node,Source,Children_Count\n")
	for _, node := range g.Nodes {
		fmt.Fprintf(&b, "%s,%s,%d\n", node, g.SourceType(node), len(g.Children[node]))
	}
	if err := os.WriteFile(csvPath, []byte(b.String()), 0o644); err != nil {
		return "", "", fmt.Errorf("services: write csv report: %w", err)
	}

	s.log.Info("Saved analysis reports", "json", jsonPath, "csv", csvPath)
	return jsonPath, csvPath, nil
}
