package models

// Kind identifies which analysis a request or result belongs to.
type Kind string

const (
	KindCode       Kind = "code"
	KindDataset    Kind = "dataset"
	KindRepository Kind = "repository"
)

// AnalysisRequest is one submission from a screen. Exactly one variant is active.
type AnalysisRequest interface {
	Kind() Kind
}

// CodeRequest submits a source snippet to the code checker.
type CodeRequest struct {
	Source string
}

// Kind implements AnalysisRequest.
func (CodeRequest) Kind() Kind { return KindCode }

// DatasetRequest uploads a CSV file for anomaly detection.
type DatasetRequest struct {
	File *Upload
}

// Kind implements AnalysisRequest.
func (DatasetRequest) Kind() Kind { return KindDataset }

// RepositoryRequest asks for a GitHub repository scan.
type RepositoryRequest struct {
	URL string
}

// Kind implements AnalysisRequest.
func (RepositoryRequest) Kind() Kind { return KindRepository }

// Upload carries a file picked in the browser.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (u *Upload) Size() int {
	if u == nil {
		return 0
	}
	return len(u.Data)
}
