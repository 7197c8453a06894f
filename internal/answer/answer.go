// Package answer turns employee questions into document-grounded answers
// with an OpenAI-compatible chat completions model.
package answer

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Scope says whether a question is about the employee's own files.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeGlobal   Scope = "global"
)

// Relevance grades a summary against the question.
type Relevance string

const (
	RelevanceHigh    Relevance = "High"
	RelevanceMedium  Relevance = "Medium"
	RelevanceLow     Relevance = "Low"
	RelevanceUnknown Relevance = "Unknown"
)

func (r Relevance) rank() int {
	switch r {
	case RelevanceHigh:
		return 0
	case RelevanceMedium:
		return 1
	case RelevanceLow:
		return 2
	default:
		return 3
	}
}

// Candidate is a document the model may choose from.
type Candidate struct {
	Key     string
	Title   string
	Snippet string // first characters of the content, shown during selection
}

// Summary is the model's summary of one selected document.
type Summary struct {
	Key       string
	Title     string
	Text      string
	Relevance Relevance
	Failed    bool
}

// Engine is the answering capability the query handler uses.
type Engine interface {
	// Classify decides between personal and global. It falls back to
	// ScopeGlobal when the model gives no usable answer.
	Classify(ctx context.Context, query string) (Scope, error)
	// Interpret returns a spelling-corrected version of query, or query itself.
	Interpret(ctx context.Context, query string) (string, error)
	// Select picks up to max candidate keys, most relevant first. Keys
	// not among the candidates are discarded.
	Select(ctx context.Context, query string, cands []Candidate, max int) ([]string, error)
	// Summarize summarizes content for query. A failed call yields a
	// Summary with Failed set rather than an error.
	Summarize(ctx context.Context, query, key, title, content string) Summary
}

// Rank orders summaries High, Medium, Low, Unknown, keeping selection
// order within a grade.
func Rank(sums []Summary) []Summary {
	out := append([]Summary(nil), sums...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance.rank() < out[j].Relevance.rank() })
	return out
}

// Combine joins summary texts into one message body.
func Combine(sums []Summary) string {
	parts := make([]string, len(sums))
	for i, s := range sums {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n\n")
}

var (
	headingMarks   = regexp.MustCompile(`#+\s*`)
	relevanceLabel = regexp.MustCompile(`(?i)Relevance:\s*(\w+)`)
	sopReference   = regexp.MustCompile(`SOP-[A-Z0-9-]+`)
	codeFence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// cleanSummary strips markdown heading marks and reads the relevance grade.
func cleanSummary(text string) (string, Relevance) {
	text = headingMarks.ReplaceAllString(strings.TrimSpace(text), "")
	rel := RelevanceUnknown
	if m := relevanceLabel.FindStringSubmatch(text); m != nil {
		switch strings.ToLower(m[1]) {
		case "high":
			rel = RelevanceHigh
		case "medium":
			rel = RelevanceMedium
		case "low":
			rel = RelevanceLow
		}
	}
	return text, rel
}

// SOPReferences returns the distinct SOP ids mentioned in text, in order
// of first mention.
func SOPReferences(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range sopReference.FindAllString(text, -1) {
		m = strings.TrimRight(m, "-")
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// parseSelection reads a JSON array of keys, tolerating a code fence,
// and keeps only known candidates.
func parseSelection(content string, cands []Candidate, max int) ([]string, error) {
	content = strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	var picked []string
	if err := json.Unmarshal([]byte(content), &picked); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cands))
	for _, c := range cands {
		known[c.Key] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, k := range picked {
		if known[k] && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}
