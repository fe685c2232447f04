package screen

import "github.com/codecheckerai/analysis-console/internal/models"

// Entry describes a screen on the home page.
type Entry struct {
	Kind        models.Kind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

var catalogue = []Entry{
	{
		Kind:        models.KindCode,
		Title:       "Check Code Snippet",
		Description: "Analyze a single code snippet for issues and improvements.",
	},
	{
		Kind:        models.KindRepository,
		Title:       "Check GitHub Repo",
		Description: "Analyze an entire GitHub repository for code quality and issues.",
	},
	{
		Kind:        models.KindDataset,
		Title:       "Check Dataset",
		Description: "Detect anomalies in your dataset using machine learning algorithms.",
	},
}

// Catalogue lists the screens in home page order.
func Catalogue() []Entry {
	out := make([]Entry, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup reports whether kind names a screen.
func Lookup(kind string) (models.Kind, bool) {
	for _, e := range catalogue {
		if string(e.Kind) == kind {
			return e.Kind, true
		}
	}
	return "", false
}
