// Package text cleans extracted document text before prompting and dialogue
// text before synthesis.
package text

import (
	"fmt"
	"regexp"
	"strings"
)

// Regex patterns for text cleaning.
const (
	urlRegexPattern         = `https?://\S+`
	emailRegexPattern       = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	referenceRegexPattern   = `\[\d+(?:\s*[,–-]\s*\d+)*\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+`
	hyphenBreakRegexPattern = `(\p{L})-[ \t]*\r?\n[ \t]*(\p{Ll})`
	pageNumberRegexPattern  = `(?m)^[ \t]*\d{1,4}[ \t]*$`
	whitespaceRegexPattern  = `\s+`
	repeatedPunctPattern    = `([!?,;:])[!?,;:]+`
	longDotsPattern         = `\.{4,}`
	abbreviationPattern     = `\b(?:Mrs|Mr|Ms|Dr|Ltd|Corp|Inc|e\.g|i\.e)\.`
)

// Placeholders for tokens that must survive cleaning untouched.
const (
	urlPlaceholderPattern   = `__URL_PLACEHOLDER_%d__`
	emailPlaceholderPattern = `__EMAIL_PLACEHOLDER_%d__`
)

// Punctuation constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	nbsp         = "\u00a0"
	softHyphen   = "\u00ad"
	englishCode  = "en"
)

// Normalizer holds the compiled patterns shared by both cleaning passes.
type Normalizer struct {
	urlPattern           *regexp.Regexp
	emailPattern         *regexp.Regexp
	referencePattern     *regexp.Regexp
	hyphenBreakPattern   *regexp.Regexp
	pageNumberPattern    *regexp.Regexp
	whitespacePattern    *regexp.Regexp
	repeatedPunctPattern *regexp.Regexp
	longDotsPattern      *regexp.Regexp
	abbreviationPattern  *regexp.Regexp
	punctuationReplacer  *strings.Replacer
}

// abbreviations maps whole-word English abbreviations to their spoken form.
var abbreviations = map[string]string{
	"Mr.":   "Mister",
	"Mrs.":  "Missus",
	"Ms.":   "Miss",
	"Dr.":   "Doctor",
	"Ltd.":  "Limited",
	"Corp.": "Corporation",
	"Inc.":  "Incorporated",
	"e.g.":  "for example",
	"i.e.":  "that is",
}

// NewNormalizer compiles the patterns once.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		urlPattern:           regexp.MustCompile(urlRegexPattern),
		emailPattern:         regexp.MustCompile(emailRegexPattern),
		referencePattern:     regexp.MustCompile(referenceRegexPattern),
		hyphenBreakPattern:   regexp.MustCompile(hyphenBreakRegexPattern),
		pageNumberPattern:    regexp.MustCompile(pageNumberRegexPattern),
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		repeatedPunctPattern: regexp.MustCompile(repeatedPunctPattern),
		longDotsPattern:      regexp.MustCompile(longDotsPattern),
		abbreviationPattern:  regexp.MustCompile(abbreviationPattern),
		punctuationReplacer: strings.NewReplacer(
			emDash, " - ",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			nbsp, " ",
			softHyphen, "",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// CleanDocument prepares extracted text for the model: words split across
// line breaks are rejoined, bare page numbers and reference markers are
// dropped, typography is normalised and whitespace collapsed.
func (n *Normalizer) CleanDocument(text string) string {
	if text == "" {
		return text
	}

	cleaned := n.hyphenBreakPattern.ReplaceAllString(text, "$1$2")
	cleaned = n.pageNumberPattern.ReplaceAllString(cleaned, "")
	cleaned = n.referencePattern.ReplaceAllString(cleaned, "")
	cleaned = n.punctuationReplacer.Replace(cleaned)

	return n.collapseWhitespace(cleaned)
}

// CleanUtterance prepares one dialogue turn for synthesis. English text also
// has common abbreviations spelled out. Empty or blank input returns "".
func (n *Normalizer) CleanUtterance(text, language string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	preserved, placeholders := n.preserveTokens(text)

	cleaned := n.punctuationReplacer.Replace(preserved)
	if strings.EqualFold(strings.TrimSpace(language), englishCode) {
		cleaned = n.abbreviationPattern.ReplaceAllStringFunc(cleaned, func(match string) string {
			return abbreviations[match]
		})
	}

	cleaned = n.longDotsPattern.ReplaceAllString(cleaned, ellipsis)
	cleaned = n.repeatedPunctPattern.ReplaceAllString(cleaned, "$1")
	cleaned = n.collapseWhitespace(cleaned)

	return n.restoreTokens(cleaned, placeholders)
}

// preserveTokens replaces URLs and emails with numbered placeholders.
func (n *Normalizer) preserveTokens(text string) (processedText string, placeholders map[string]string) {
	placeholders = make(map[string]string)

	counter := 0

	replaceFunc := func(pattern *regexp.Regexp, placeholderFormat string) {
		processedText = pattern.ReplaceAllStringFunc(processedText, func(match string) string {
			placeholder := fmt.Sprintf(placeholderFormat, counter)

			placeholders[placeholder] = match
			counter++

			return placeholder
		})
	}

	processedText = text

	replaceFunc(n.urlPattern, urlPlaceholderPattern)
	replaceFunc(n.emailPattern, emailPlaceholderPattern)

	return processedText, placeholders
}

func (n *Normalizer) restoreTokens(text string, placeholders map[string]string) string {
	for placeholder, original := range placeholders {
		text = strings.ReplaceAll(text, placeholder, original)
	}

	return text
}

func (n *Normalizer) collapseWhitespace(text string) string {
	return strings.TrimSpace(n.whitespacePattern.ReplaceAllString(text, " "))
}
