package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/codecheckerai/analysis-console/internal/models"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

// maxErrorBody bounds how much of a failed response is read looking for an
// error message.
const maxErrorBody = 64 << 10

// AnalysisClient wraps the remote analysis service endpoints.
type AnalysisClient struct {
	baseURL        string
	codePath       string
	datasetPath    string
	repositoryPath string
	httpClient     *http.Client
}

// NewAnalysisClient constructs a client targeting the configured analysis service.
func NewAnalysisClient(baseURL, codePath, datasetPath, repositoryPath string, timeout time.Duration) *AnalysisClient {
	return &AnalysisClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		codePath:       codePath,
		datasetPath:    datasetPath,
		repositoryPath: repositoryPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Analyze routes req to the matching endpoint and returns the decoded JSON
// body. The payload is left untyped; normalization happens downstream.
func (c *AnalysisClient) Analyze(ctx context.Context, req models.AnalysisRequest) (any, error) {
	switch r := req.(type) {
	case models.CodeRequest:
		return c.CheckCode(ctx, r.Source)
	case models.DatasetRequest:
		return c.CheckDataset(ctx, r.File)
	case models.RepositoryRequest:
		return c.CheckRepository(ctx, r.URL)
	}
	return nil, utils.NewAppError(utils.FaultValidation, "analysis client", "", fmt.Errorf("unsupported request %T", req))
}

// CheckCode posts a snippet to the code endpoint.
func (c *AnalysisClient) CheckCode(ctx context.Context, source string) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var out any
	if err := c.postJSON(ctx, c.codeURL(), map[string]string{"code": source}, &out); err != nil {
		return nil, wrapTransport("check code", err)
	}
	return out, nil
}

// CheckDataset uploads a CSV file to the dataset endpoint as multipart field "file".
func (c *AnalysisClient) CheckDataset(ctx context.Context, file *models.Upload) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, utils.ValidationError("check dataset", "Please upload a dataset file.")
	}
	var out any
	if err := c.postMultipart(ctx, c.datasetURL(), "file", file, &out); err != nil {
		return nil, wrapTransport("check dataset", err)
	}
	return out, nil
}

// CheckRepository posts a repository URL to the repository endpoint.
func (c *AnalysisClient) CheckRepository(ctx context.Context, repoURL string) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var out any
	if err := c.postJSON(ctx, c.repositoryURL(), map[string]string{"repo_url": repoURL}, &out); err != nil {
		return nil, wrapTransport("check repository", err)
	}
	return out, nil
}

func (c *AnalysisClient) ready() error {
	if c == nil {
		return utils.NewAppError(utils.FaultTransport, "analysis client", "", errors.New("not initialised"))
	}
	if c.baseURL == "" {
		return utils.NewAppError(utils.FaultTransport, "analysis client", "", errors.New("base URL not configured"))
	}
	return nil
}

func (c *AnalysisClient) codeURL() string       { return c.resolvePath(c.codePath) }
func (c *AnalysisClient) datasetURL() string    { return c.resolvePath(c.datasetPath) }
func (c *AnalysisClient) repositoryURL() string { return c.resolvePath(c.repositoryPath) }

// resolvePath joins p onto the base URL, keeping the trailing slash the
// service routes expect.
func (c *AnalysisClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	joined := path.Join(u.Path, cleaned)
	if strings.HasSuffix(cleaned, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	u.Path = joined
	return u.String()
}

func (c *AnalysisClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.post(ctx, endpoint, "application/json", bytes.NewReader(body), out)
}

func (c *AnalysisClient) postMultipart(ctx context.Context, endpoint, field string, file *models.Upload, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := file.Name
	if name == "" {
		name = "dataset.csv"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "text/csv"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}
	return c.post(ctx, endpoint, w.FormDataContentType(), &buf, out)
}

func (c *AnalysisClient) post(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx reply. Message is the body's "error" field, when
// the service sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analysis service returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("analysis service returned %d: %s", e.Code, e.Message)
}

func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if s, ok := payload.Error.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// wrapTransport classifies err as a transport fault, carrying the service's
// own message for display when it supplied one.
func wrapTransport(op string, err error) error {
	var statusErr *StatusError
	msg := ""
	if errors.As(err, &statusErr) {
		msg = statusErr.Message
	}
	return utils.NewAppError(utils.FaultTransport, op, msg, err)
}
