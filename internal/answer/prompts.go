package answer

import (
	"fmt"
	"strings"
)

const summaryContentLimit = 4000

func classifyPrompt(query string) string {
	return fmt.Sprintf("Query: '%s'\n"+
		"Classify as 'personal' (e.g., payslips, my documents, benefits guide) or 'global' "+
		"(e.g., policies, SOPs, general questions). Output ONLY 'personal' or 'global'.", query)
}

func interpretPrompt(query string) string {
	return fmt.Sprintf("Query: '%s'\n"+
		"If this seems misspelled or unclear, suggest a corrected version (e.g., 'code of condct' -> 'code of conduct'). "+
		"Consider common HR terms like 'payslip', 'leave policy', 'code of conduct'. "+
		"If no correction needed, output the original query. Output ONLY the query (corrected or original).", query)
}

func selectPrompt(query string, cands []Candidate, max int) string {
	entries := make([]string, len(cands))
	for i, c := range cands {
		entries[i] = fmt.Sprintf("Path: %s\nTitle: %s\nSnippet: %s", c.Key, c.Title, c.Snippet)
	}
	return fmt.Sprintf("Query: '%s'\nDocuments:\n%s\n\n"+
		"Select up to %d most relevant documents (must directly relate; e.g., for 'leave policy', "+
		"prioritize 'benefits guide' or 'employee handbook' over unrelated SOPs). "+
		"Output ONLY a JSON array of selected paths (full keys), prioritized by relevance.",
		query, strings.Join(entries, "\n\n"), max)
}

func summarizePrompt(query, title, content string) string {
	if r := []rune(content); len(r) > summaryContentLimit {
		content = string(r[:summaryContentLimit])
	}
	return fmt.Sprintf("Document Name: %s\nContent: %s...\nQuery: %s\n"+
		"Output Markdown: Start with **%s** - Relevance: High/Medium/Low. 1-sentence summary. "+
		"Bullet key details, including relevant sections/subsections where info is found "+
		"(extract quotes/snippets from those sections if huge doc). Numbered insights. "+
		"Clean, mobile-friendly, emojis optional. No hashes like # or ### in text.",
		title, content, query, title)
}
