package models

// AnalysisResult is the normalized, display-ready outcome of a request.
type AnalysisResult interface {
	Kind() Kind
}

// CodeResult mirrors the code checker response with every field populated.
type CodeResult struct {
	SyntaxSummary       string              `json:"syntaxSummary"`
	CorrectedSource     string              `json:"correctedSource"`
	UnusedImports       []string            `json:"unusedImports"`
	AnomalySummary      string              `json:"anomalySummary"`
	Keywords            []string            `json:"keywords"`
	CodeSmells          []string            `json:"codeSmells"`
	DeprecatedLibraries []DeprecatedLibrary `json:"deprecatedLibraries"`
	CodeClones          []CodeClone         `json:"codeClones"`
}

// Kind implements AnalysisResult.
func (CodeResult) Kind() Kind { return KindCode }

// DeprecatedLibrary flags an import pinned to an outdated release.
type DeprecatedLibrary struct {
	Library     string `json:"library"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// CodeClone pairs two similar snippets. Similarity is always within [0,1].
type CodeClone struct {
	SnippetA   string  `json:"snippetA"`
	SnippetB   string  `json:"snippetB"`
	Similarity float64 `json:"similarity"`
}

// DatasetResult holds the two anomaly models run over an uploaded CSV.
type DatasetResult struct {
	IsolationForest ModelAnomalies `json:"isolationForest"`
	OneClassSVM     ModelAnomalies `json:"oneClassSvm"`
	ClusterGraph    Image          `json:"clusterGraph,omitempty"`
}

// Kind implements AnalysisResult.
func (DatasetResult) Kind() Kind { return KindDataset }

// ModelAnomalies is the output of a single anomaly detector.
type ModelAnomalies struct {
	AnomalyCount   Count    `json:"anomalyCount"`
	AnomalyIndices []int    `json:"anomalyIndices"`
	Explanations   []string `json:"explanations"`
	Graph          Image    `json:"graph,omitempty"`
}

// RepositoryResult summarises a repository scan.
type RepositoryResult struct {
	Info            RepoInfo                `json:"repoInfo"`
	PerFile         map[string]FileAnalysis `json:"perFileAnalysis"`
	Vulnerabilities []Vulnerability         `json:"vulnerabilities"`
	CommitChart     Image                   `json:"commitChart,omitempty"`
}

// Kind implements AnalysisResult.
func (RepositoryResult) Kind() Kind { return KindRepository }

// RepoInfo describes the scanned GitHub repository.
type RepoInfo struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	Description string `json:"description"`
	Stars       Count  `json:"stars"`
	Forks       Count  `json:"forks"`
}

// FileAnalysis is the per-file verdict inside a repository scan.
type FileAnalysis struct {
	Issue         string   `json:"issue"`
	UnusedImports []string `json:"unusedImports"`
}

// Vulnerability is a single security finding.
type Vulnerability struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}
