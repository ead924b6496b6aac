package quality

import (
	"strings"
	"testing"

	"bookforge/internal/config"
)

func thresholds() config.Quality {
	return config.Quality{MinWordCount: 10, MinChapterCount: 2, MaxDuplicateRatio: 0.15}
}

func TestCountWords(t *testing.T) {
	if got := CountWords("one two  three\nfour"); got != 4 {
		t.Fatalf("CountWords = %d, want 4", got)
	}
	if got := CountWords(""); got != 0 {
		t.Fatalf("CountWords(empty) = %d, want 0", got)
	}
}

func TestCountChapters(t *testing.T) {
	text := "# Title\n\n## Chapter 1: A\n\nbody ## not a heading\n\n## Chapter 2: B\n"
	if got := CountChapters(text); got != 2 {
		t.Fatalf("CountChapters = %d, want 2", got)
	}
}

func TestDuplicateRatio(t *testing.T) {
	text := strings.Join([]string{
		"This is the first sentence.",
		"This is another sentence entirely.",
		"this is the FIRST sentence.", // duplicate after normalization
		"A completely different thought.",
	}, " ")
	got := DuplicateRatio(text)
	if got != 0.25 {
		t.Fatalf("DuplicateRatio = %v, want 0.25", got)
	}
}

func TestDuplicateRatioShortDocument(t *testing.T) {
	if got := DuplicateRatio("Tiny."); got != 0 {
		t.Fatalf("DuplicateRatio = %v, want 0", got)
	}
}

func TestCheckPasses(t *testing.T) {
	text := "## Chapter 1\n\n" +
		"Every sentence in this document is distinct. " +
		"No clause repeats a previous one verbatim. " +
		"The vocabulary varies from line to line. " +
		"\n\n## Chapter 2\n\nMore sentences of a different shape entirely here."
	result := Check(text, thresholds())
	if !result.Passed {
		t.Fatalf("expected pass, warnings: %v", result.Warnings)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
}

func TestCheckRecordsWarningsWithoutFailing(t *testing.T) {
	result := Check("## Only Chapter\n\nshort text", thresholds())
	if result.Passed {
		t.Fatal("expected failed quality check")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warnings")
	}
	for _, warning := range result.Warnings {
		if warning == "" {
			t.Fatal("empty warning message")
		}
	}
}
