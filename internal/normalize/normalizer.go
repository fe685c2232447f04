// Package normalize turns loosely typed analysis-service payloads into the
// fixed result shapes the screens render.
//
// Normalization never fails. Absent fields take documented defaults and
// structurally unexpected fields are repaired, logged and counted.
package normalize

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/codecheckerai/analysis-console/internal/metrics"
	"github.com/codecheckerai/analysis-console/internal/models"
)

// Sentinels shown when the service omitted a summary field.
const (
	NoSyntaxErrors = "No syntax errors detected."
	NoAnomalies    = "No anomalies detected."
	NoName         = "No name available"
	NoOwner        = "No owner available"
	NoDescription  = "No description available"
)

// Normalizer reshapes raw payloads. The zero value is not usable; call New.
type Normalizer struct {
	logger *slog.Logger
}

// New returns a Normalizer reporting faults to logger.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize dispatches on the request variant. The request supplies context
// some defaults depend on, such as the submitted source.
func (n *Normalizer) Normalize(req models.AnalysisRequest, raw any) models.AnalysisResult {
	switch r := req.(type) {
	case models.CodeRequest:
		return n.Code(raw, r.Source)
	case models.DatasetRequest:
		return n.Dataset(raw)
	case models.RepositoryRequest:
		return n.Repository(raw, r.URL)
	}
	n.logger.Error("normalize: unsupported request", slog.Any("request", req))
	return nil
}

// Code normalizes a /api/check/ payload. source backs the corrected code when
// the service returned none.
func (n *Normalizer) Code(raw any, source string) models.CodeResult {
	r := n.reader(models.KindCode)
	m := r.root(raw)

	corrected := r.str(m, "corrected_code", "")
	if strings.TrimSpace(corrected) == "" {
		corrected = source
	}

	return models.CodeResult{
		SyntaxSummary:       r.str(m, "result", NoSyntaxErrors),
		CorrectedSource:     corrected,
		UnusedImports:       r.strings(m, "unused_imports", false),
		AnomalySummary:      r.str(m, "anomaly_detection_result", NoAnomalies),
		Keywords:            r.strings(m, "keywords", false),
		CodeSmells:          r.strings(m, "code_smells", false),
		DeprecatedLibraries: n.deprecatedLibraries(r, m),
		CodeClones:          n.codeClones(r, m),
	}
}

func (n *Normalizer) deprecatedLibraries(r reader, m map[string]any) []models.DeprecatedLibrary {
	items, ok := r.list(m, "deprecated_libraries")
	if !ok {
		return []models.DeprecatedLibrary{}
	}
	out := make([]models.DeprecatedLibrary, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, models.DeprecatedLibrary{
				Library:     r.str(v, "library", ""),
				Version:     r.str(v, "version", ""),
				Description: r.str(v, "description", ""),
			})
		case string:
			out = append(out, models.DeprecatedLibrary{Library: v})
		default:
			r.fault(r.kind, "deprecated_libraries", "dropped non-object entry")
		}
	}
	return out
}

func (n *Normalizer) codeClones(r reader, m map[string]any) []models.CodeClone {
	items, ok := r.list(m, "code_clones")
	if !ok {
		return []models.CodeClone{}
	}
	out := make([]models.CodeClone, 0, len(items))
	for _, item := range items {
		v, ok := item.(map[string]any)
		if !ok {
			r.fault(r.kind, "code_clones", "dropped non-object entry")
			continue
		}
		a, _ := first(v, "snippet_a", "snippetA", "snippet1")
		b, _ := first(v, "snippet_b", "snippetB", "snippet2")
		out = append(out, models.CodeClone{
			SnippetA:   stringOrEmpty(a),
			SnippetB:   stringOrEmpty(b),
			Similarity: r.similarity(v["similarity"]),
		})
	}
	return out
}

// Dataset normalizes a /api/check-dataset/ payload.
func (n *Normalizer) Dataset(raw any) models.DatasetResult {
	r := n.reader(models.KindDataset)
	m := r.root(raw)
	return models.DatasetResult{
		IsolationForest: modelAnomalies(r, m, "num_iso_forest_anomalies", "iso_forest_anomalies", "iso_forest_explanations", "iso_forest_graph"),
		OneClassSVM:     modelAnomalies(r, m, "num_svm_anomalies", "svm_anomalies", "svm_explanations", "svm_graph"),
		ClusterGraph:    r.image(m, "cluster_graph"),
	}
}

func modelAnomalies(r reader, m map[string]any, countKey, indicesKey, explanationsKey, graphKey string) models.ModelAnomalies {
	return models.ModelAnomalies{
		AnomalyCount:   r.count(m, countKey),
		AnomalyIndices: r.ints(m, indicesKey),
		Explanations:   r.strings(m, explanationsKey, true),
		Graph:          r.image(m, graphKey),
	}
}

// Repository normalizes a /api/check-repo/ payload. Older services returned
// the repository fields at the top level with "repository" holding the URL;
// that shape is accepted too. url backs the repository URL when the service
// omitted it.
func (n *Normalizer) Repository(raw any, url string) models.RepositoryResult {
	r := n.reader(models.KindRepository)
	m := r.root(raw)

	info := map[string]any{}
	switch v := m["repository"].(type) {
	case map[string]any:
		info = v
	case string:
		info = m
	case nil:
	default:
		info = r.object(m, "repository")
	}

	return models.RepositoryResult{
		Info: models.RepoInfo{
			URL:         r.str(info, "repository", url),
			Name:        r.str(info, "name", NoName),
			Owner:       r.str(info, "owner", NoOwner),
			Description: r.str(info, "description", NoDescription),
			Stars:       r.count(info, "stars"),
			Forks:       r.count(info, "forks"),
		},
		PerFile:         perFileAnalysis(r, m),
		Vulnerabilities: vulnerabilities(r, m),
		CommitChart:     r.image(m, "commit_chart"),
	}
}

func perFileAnalysis(r reader, m map[string]any) map[string]models.FileAnalysis {
	files := r.object(m, "analysis_results")
	out := make(map[string]models.FileAnalysis, len(files))
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := files[name].(type) {
		case map[string]any:
			out[name] = models.FileAnalysis{
				Issue:         r.str(v, "issue", ""),
				UnusedImports: r.strings(v, "unused_imports", false),
			}
		case string:
			out[name] = models.FileAnalysis{Issue: v, UnusedImports: []string{}}
		default:
			r.fault(r.kind, "analysis_results."+name, "unexpected entry shape")
			out[name] = models.FileAnalysis{UnusedImports: []string{}}
		}
	}
	return out
}

func vulnerabilities(r reader, m map[string]any) []models.Vulnerability {
	items, ok := r.list(m, "security_vulnerabilities")
	if !ok {
		return []models.Vulnerability{}
	}
	out := make([]models.Vulnerability, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, models.Vulnerability{
				Issue:       r.str(v, "issue", ""),
				Description: r.str(v, "description", ""),
				Severity:    r.str(v, "severity", ""),
			})
		case string:
			out = append(out, models.Vulnerability{Issue: v})
		default:
			r.fault(r.kind, "security_vulnerabilities", "dropped non-object entry")
		}
	}
	return out
}

func (n *Normalizer) reader(kind models.Kind) reader {
	return reader{kind: kind, fault: n.fault}
}

func (n *Normalizer) fault(kind models.Kind, field, detail string) {
	metrics.NormalizationFault(string(kind), field)
	n.logger.Warn("normalization fault",
		slog.String("kind", string(kind)),
		slog.String("field", field),
		slog.String("detail", detail),
	)
}

func stringOrEmpty(v any) string {
	if v == nil {
		return ""
	}
	return stringify(v)
}
