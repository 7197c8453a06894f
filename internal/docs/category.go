package docs

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category groups personal files by a marker in the filename.
type Category struct {
	Slug     string   // first word of Title, lower-cased; used in list row ids
	Title    string   // shown to the user
	Marker   string   // filename substring that selects the category
	Keywords []string // leading words that ask for the category in free text
}

var categories = []Category{
	{Slug: "job", Title: "Job Description 📋", Marker: "Job_Description", Keywords: []string{"job description", "job descriptions"}},
	{Slug: "payslips", Title: "Payslips 💰", Marker: "Payslip", Keywords: []string{"payslips", "payslip"}},
	{Slug: "employee", Title: "Employee Handbook 📖", Marker: "Handbook", Keywords: []string{"handbook", "employee handbook"}},
	{Slug: "performance", Title: "Performance Reviews ⭐", Marker: "Review", Keywords: []string{"performance reviews", "reviews"}},
	{Slug: "benefits", Title: "Benefits Guide 🎁", Marker: "Benefits", Keywords: []string{"benefits guide", "benefits"}},
	{Slug: "warning", Title: "Warning Letters ⚠️", Marker: "Warning", Keywords: []string{"warning letters", "warnings"}},
}

// Other catches files matching no marker.
var Other = Category{Slug: "other", Title: "Other"}

// Categories returns the categories in display order, Other last.
func Categories() []Category {
	out := make([]Category, 0, len(categories)+1)
	out = append(out, categories...)
	return append(out, Other)
}

// Categorize picks the category of filename. The first matching marker wins.
func Categorize(filename string) Category {
	for _, c := range categories {
		if strings.Contains(filename, c.Marker) {
			return c
		}
	}
	return Other
}

// CategoryBySlug finds a category by its slug.
func CategoryBySlug(slug string) (Category, bool) {
	for _, c := range Categories() {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

// MatchRequest checks whether text asks for a category ("payslips dec")
// and returns the category and the remaining filter words.
func MatchRequest(text string) (Category, string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	best, bestLen, rest := Category{}, 0, ""
	for _, c := range categories {
		for _, kw := range c.Keywords {
			if !strings.HasPrefix(lowered, kw) || len(kw) <= bestLen {
				continue
			}
			tail := lowered[len(kw):]
			if tail != "" && tail[0] != ' ' {
				continue
			}
			best, bestLen, rest = c, len(kw), strings.TrimSpace(tail)
		}
	}
	return best, rest, bestLen > 0
}

// Group is one category's files.
type Group struct {
	Category Category
	Keys     []string
}

// GroupPDFs categorizes the PDF keys and returns the non-empty groups in
// display order.
func GroupPDFs(keys []string) []Group {
	byslug := make(map[string][]string)
	for _, k := range keys {
		if !IsPDF(k) {
			continue
		}
		c := Categorize(Filename(k))
		byslug[c.Slug] = append(byslug[c.Slug], k)
	}
	var out []Group
	for _, c := range Categories() {
		if ks := byslug[c.Slug]; len(ks) > 0 {
			out = append(out, Group{Category: c, Keys: ks})
		}
	}
	return out
}

// FilterKeys keeps keys whose filename contains filter, case-insensitively.
func FilterKeys(keys []string, filter string) []string {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return keys
	}
	var out []string
	for _, k := range keys {
		if strings.Contains(strings.ToLower(Filename(k)), filter) {
			out = append(out, k)
		}
	}
	return out
}

// Latest returns the lexically greatest key, which for date-stamped
// filenames is the newest.
func Latest(keys []string) (string, bool) {
	if len(keys) == 0 {
		return "", false
	}
	sorted := append([]string(nil), keys...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	return sorted[0], true
}

var bookkeeping = []string{"processed_messages.json", "queries.json", "bot_state.json", "user.json", "leaves.json", "state.json"}

// IsBookkeeping reports whether key is a state file rather than a document.
func IsBookkeeping(key string) bool {
	for _, b := range bookkeeping {
		if strings.Contains(key, b) {
			return true
		}
	}
	return false
}

var (
	trailingVersion = regexp.MustCompile(`\s+v?\d{1,2}\.\d+$`)
	datePattern     = regexp.MustCompile(`(\d{4})\.(\d{1,2})(?:\.(\d{1,2}))?`)
	months          = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// CleanTitle turns a document key into a readable title:
// "acme/sops/all/Leave_Policy_2025.11_v1.2.json" becomes "Leave policy nov 2025".
func CleanTitle(key string) string {
	name := strings.TrimSuffix(Filename(key), ".json")
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = strings.ToLower(strings.TrimSpace(name))
	name = trailingVersion.ReplaceAllString(name, "")

	if m := datePattern.FindStringSubmatch(name); m != nil {
		month := ""
		if n, _ := strconv.Atoi(m[2]); n >= 1 && n <= 12 {
			month = months[n-1]
		}
		date := fmt.Sprintf("%s %s", month, m[1])
		if m[3] != "" {
			date += " " + m[3]
		}
		name = datePattern.ReplaceAllLiteralString(name, date)
	}
	return capitalize(name)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
