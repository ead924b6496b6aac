package quality

import (
	"fmt"
	"regexp"
	"strings"

	"bookforge/internal/config"
)

// Result reports the metrics computed over a manuscript plus pass/fail
// against the configured thresholds. Violations never fail a run; they are
// recorded as warnings the manifest carries.
type Result struct {
	Passed         bool     `json:"passed"`
	WordCount      int      `json:"word_count"`
	ChapterCount   int      `json:"chapter_count"`
	DuplicateRatio float64  `json:"duplicate_ratio"`
	Warnings       []string `json:"warnings"`
}

var (
	chapterHeading  = regexp.MustCompile(`(?m)^## `)
	sentenceSplit   = regexp.MustCompile(`[.!?。]\s*`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	minSentenceSize = 10
)

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountChapters counts structural section markers ("## " headings).
func CountChapters(text string) int {
	return len(chapterHeading.FindAllString(text, -1))
}

// DuplicateRatio computes the fraction of sentences that exactly duplicate an
// earlier sentence in the same document, after case and whitespace
// normalization. Sentences shorter than a small threshold are ignored.
func DuplicateRatio(text string) float64 {
	raw := sentenceSplit.Split(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) > minSentenceSize {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) < 2 {
		return 0
	}

	seen := make(map[string]struct{}, len(sentences))
	duplicates := 0
	for _, sentence := range sentences {
		normalized := whitespaceRuns.ReplaceAllString(strings.ToLower(sentence), "")
		if _, ok := seen[normalized]; ok {
			duplicates++
			continue
		}
		seen[normalized] = struct{}{}
	}
	return float64(duplicates) / float64(len(sentences))
}

// Check computes all metrics and evaluates them against the thresholds.
func Check(text string, thresholds config.Quality) Result {
	result := Result{
		Passed:         true,
		WordCount:      CountWords(text),
		ChapterCount:   CountChapters(text),
		DuplicateRatio: DuplicateRatio(text),
		Warnings:       []string{},
	}

	if result.WordCount < thresholds.MinWordCount {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("word count %d below recommended %d", result.WordCount, thresholds.MinWordCount))
		result.Passed = false
	}
	if result.ChapterCount < thresholds.MinChapterCount {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("chapter count %d below recommended %d", result.ChapterCount, thresholds.MinChapterCount))
		result.Passed = false
	}
	if result.DuplicateRatio > thresholds.MaxDuplicateRatio {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("duplicate sentence ratio %.1f%% above recommended %.1f%%",
				result.DuplicateRatio*100, thresholds.MaxDuplicateRatio*100))
		result.Passed = false
	}
	return result
}
