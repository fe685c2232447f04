package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// pixelPNG is a 1x1 transparent PNG used for every chart.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

type deprecatedLibrary struct {
	Library     string `json:"library"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type codeClone struct {
	SnippetA   string  `json:"snippet_a"`
	SnippetB   string  `json:"snippet_b"`
	Similarity float64 `json:"similarity"`
}

type vulnerability struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/check/", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Code) == "" {
			writeError(w, http.StatusBadRequest, "No code provided")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"result":                   "No syntax errors detected.",
			"unused_imports":           unusedImports(body.Code),
			"anomaly_detection_result": "No anomalies detected.",
			"keywords":                 []string{"def", "return", "import"},
			"code_smells":              []string{},
			"deprecated_libraries": []deprecatedLibrary{
				{Library: "imp", Version: "3.4", Description: "Use importlib instead."},
			},
			"code_clones": []codeClone{},
		})
	})

	mux.HandleFunc("/api/check-dataset/", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer file.Close()
		rows, err := countRows(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Could not parse CSV: "+err.Error())
			return
		}
		var iso, svm []int
		for i := 0; i < rows; i++ {
			if i%7 == 3 {
				iso = append(iso, i)
			}
			if i%11 == 5 {
				svm = append(svm, i)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"num_iso_forest_anomalies": len(iso),
			"iso_forest_anomalies":     orEmpty(iso),
			"iso_forest_explanations":  explain(iso),
			"iso_forest_graph":         pixelPNG,
			"num_svm_anomalies":        len(svm),
			"svm_anomalies":            orEmpty(svm),
			"svm_explanations":         explain(svm),
			"svm_graph":                pixelPNG,
			"cluster_graph":            pixelPNG,
		})
	})

	mux.HandleFunc("/api/check-repo/", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var body struct {
			RepoURL string `json:"repo_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		owner, name, ok := splitGitHubURL(body.RepoURL)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid GitHub repository URL")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"repository": map[string]any{
				"repository":  body.RepoURL,
				"name":        name,
				"owner":       owner,
				"description": "Local mock repository",
				"stars":       42,
				"forks":       7,
			},
			"analysis_results": map[string]any{
				"main.py":  map[string]any{"issue": "No syntax errors detected.", "unused_imports": []string{"sys"}},
				"utils.py": map[string]any{"issue": "Syntax error on line 12"},
			},
			"security_vulnerabilities": []vulnerability{
				{Issue: "B105", Description: "Possible hardcoded password", Severity: "LOW"},
			},
			"commit_chart": pixelPNG,
		})
	})

	addr := os.Getenv("MOCK_ANALYZER_ADDRESS")
	if addr == "" {
		addr = ":8000"
	}
	logger := log.New(log.Writer(), "analyzer-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server error: %v", err)
	}
}

func unusedImports(code string) []string {
	var unused []string
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != "import" {
			continue
		}
		name := fields[1]
		used := false
		for j, other := range lines {
			if j != i && strings.Contains(other, name+".") {
				used = true
				break
			}
		}
		if !used {
			unused = append(unused, name)
		}
	}
	return orEmpty(unused)
}

func countRows(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows := 0
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		rows++
	}
	if rows > 0 {
		rows-- // header
	}
	return rows, nil
}

func explain(indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		out = append(out, "Row "+strconv.Itoa(i)+" deviates from the bulk of the data.")
	}
	return out
}

func splitGitHubURL(raw string) (owner, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
