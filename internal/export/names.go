package export

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var honorific = regexp.MustCompile(`(?i)^\s*(m\s*/\s*s\.?|messrs\.?)\s+`)

var abbreviations = map[string]string{
	"pvt":  "Pvt.",
	"ltd":  "Ltd.",
	"llp":  "LLP",
	"llc":  "LLC",
	"inc":  "Inc.",
	"co":   "Co.",
	"corp": "Corp.",
	"plc":  "PLC",
	"gmbh": "GmbH",
}

// FormatCompanyName drops the M/s or Messrs prefix, title-cases the name and
// spells corporate abbreviations consistently ("Pvt. Ltd.", "LLP").
func FormatCompanyName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	name = honorific.ReplaceAllString(name, "")
	name = cases.Title(language.English).String(name)

	words := strings.Fields(name)
	for i, word := range words {
		key := strings.ToLower(strings.TrimRight(word, ".,"))
		if canonical, ok := abbreviations[key]; ok {
			words[i] = canonical
		}
	}
	return strings.Join(words, " ")
}
