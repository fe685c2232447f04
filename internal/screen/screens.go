package screen

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/normalize"
	"github.com/codecheckerai/analysis-console/internal/session"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

// Messages shown when a request fails without a message of its own.
const (
	CodeFallback       = "There was an error checking your code. Please try again."
	DatasetFallback    = "There was an error checking your dataset. Please try again."
	RepositoryFallback = "There was an error checking the repository. Please try again."
)

// Messages shown when input is rejected before submission.
const (
	MissingCode       = "Please enter some code to check."
	MissingDataset    = "Please upload a dataset file."
	InvalidRepository = "Please enter a valid repository URL."
)

// NoVulnerabilities is the repository screen's empty state for findings.
const NoVulnerabilities = "No vulnerabilities detected."

// CodeScreen, DatasetScreen and RepositoryScreen are the three screen types.
type (
	CodeScreen       = Screen[models.CodeRequest, models.CodeResult]
	DatasetScreen    = Screen[models.DatasetRequest, models.DatasetResult]
	RepositoryScreen = Screen[models.RepositoryRequest, models.RepositoryResult]
)

// NewCodeScreen mounts a code snippet screen.
func NewCodeScreen(d Deps) *CodeScreen {
	d = d.withDefaults()
	return newScreen(models.KindCode, session.Config[models.CodeRequest, models.CodeResult]{
		Name:     string(models.KindCode),
		Validate: ValidateCode,
		Dispatch: dispatcher[models.CodeRequest](d),
		Normalize: func(q models.CodeRequest, raw any) models.CodeResult {
			return d.Normalizer.Code(raw, q.Source)
		},
		FallbackMessage: CodeFallback,
		Observer:        d.Observer,
		Logger:          d.Logger,
	}, func(in Input) models.CodeRequest {
		return models.CodeRequest{Source: in.Code}
	}, nil)
}

// NewDatasetScreen mounts a dataset upload screen.
func NewDatasetScreen(d Deps) *DatasetScreen {
	d = d.withDefaults()
	limit := d.MaxUploadBytes
	return newScreen(models.KindDataset, session.Config[models.DatasetRequest, models.DatasetResult]{
		Name: string(models.KindDataset),
		Validate: func(q models.DatasetRequest) error {
			return ValidateDataset(q, limit)
		},
		Dispatch: dispatcher[models.DatasetRequest](d),
		Normalize: func(_ models.DatasetRequest, raw any) models.DatasetResult {
			return d.Normalizer.Dataset(raw)
		},
		FallbackMessage: DatasetFallback,
		Observer:        d.Observer,
		Logger:          d.Logger,
	}, func(in Input) models.DatasetRequest {
		return models.DatasetRequest{File: in.File}
	}, nil)
}

// NewRepositoryScreen mounts a repository screen.
func NewRepositoryScreen(d Deps) *RepositoryScreen {
	d = d.withDefaults()
	return newScreen(models.KindRepository, session.Config[models.RepositoryRequest, models.RepositoryResult]{
		Name:     string(models.KindRepository),
		Validate: ValidateRepository,
		Dispatch: dispatcher[models.RepositoryRequest](d),
		Normalize: func(q models.RepositoryRequest, raw any) models.RepositoryResult {
			return d.Normalizer.Repository(raw, q.URL)
		},
		FallbackMessage: RepositoryFallback,
		Observer:        d.Observer,
		Logger:          d.Logger,
	}, func(in Input) models.RepositoryRequest {
		return models.RepositoryRequest{URL: strings.TrimSpace(in.RepositoryURL)}
	}, func(r models.RepositoryResult) string {
		if len(r.Vulnerabilities) == 0 {
			return NoVulnerabilities
		}
		return ""
	})
}

// New mounts a screen of the given kind.
func New(kind models.Kind, d Deps) (Binding, error) {
	switch kind {
	case models.KindCode:
		return NewCodeScreen(d), nil
	case models.KindDataset:
		return NewDatasetScreen(d), nil
	case models.KindRepository:
		return NewRepositoryScreen(d), nil
	}
	return nil, fmt.Errorf("unknown screen %q", kind)
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Normalizer == nil {
		d.Normalizer = normalize.New(d.Logger)
	}
	return d
}

func dispatcher[Q models.AnalysisRequest](d Deps) func(context.Context, Q) (any, error) {
	if d.Analyzer == nil {
		return nil
	}
	return func(ctx context.Context, q Q) (any, error) {
		return d.Analyzer.Analyze(ctx, q)
	}
}

// ValidateCode requires a non-blank snippet.
func ValidateCode(q models.CodeRequest) error {
	if strings.TrimSpace(q.Source) == "" {
		return utils.ValidationError("check code", MissingCode)
	}
	return nil
}

// ValidateDataset requires a non-empty file no larger than limit. A limit of
// zero or less disables the size check.
func ValidateDataset(q models.DatasetRequest, limit int64) error {
	if q.File == nil || q.File.Size() == 0 {
		return utils.ValidationError("check dataset", MissingDataset)
	}
	if limit > 0 && int64(q.File.Size()) > limit {
		return utils.ValidationError("check dataset", fmt.Sprintf("The dataset file exceeds the %d byte upload limit.", limit))
	}
	return nil
}

// ValidateRepository requires an absolute http(s) URL with a host.
func ValidateRepository(q models.RepositoryRequest) error {
	raw := strings.TrimSpace(q.URL)
	if raw == "" {
		return utils.ValidationError("check repository", InvalidRepository)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return utils.ValidationError("check repository", InvalidRepository)
	}
	return nil
}
