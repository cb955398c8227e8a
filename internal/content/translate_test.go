package content

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Welding Basics", "welding-basics"},
		{"  Health & Safety  ", "health-safety"},
		{"Crane_Operations 101", "crane-operations-101"},
		{"Überblick!", "berblick"},
		{"---", ""},
	}

	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExcerptCapsAndFallsBack(t *testing.T) {
	t.Parallel()

	if got := Excerpt("<p>Short intro.</p>"); got != "Short intro." {
		t.Fatalf("expected plain text excerpt, got %q", got)
	}

	long := "<p>" + strings.Repeat("word ", 100) + "</p>"
	got := Excerpt(long)
	if len(got) != maxExcerptLength+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected capped excerpt with ellipsis, got %d chars", len(got))
	}

	if got := Excerpt("<div><img src=\"x\"/></div>"); got != excerptFallback {
		t.Fatalf("expected fallback for text-free body, got %q", got)
	}
}

func TestReadMinutes(t *testing.T) {
	t.Parallel()

	if got := ReadMinutes("<p>just a few words</p>"); got != 1 {
		t.Fatalf("expected minimum of 1 minute, got %d", got)
	}

	long := "<p>" + strings.Repeat("word ", 400) + "</p>"
	if got := ReadMinutes(long); got != 2 {
		t.Fatalf("expected 2 minutes for 400 words, got %d", got)
	}
}

func TestContentTagsFiltersStatusLabels(t *testing.T) {
	t.Parallel()

	tags := ContentTags([]string{"status-unpublished", "welding", "status-rejected", "safety"})
	if len(tags) != 2 || tags[0] != "welding" || tags[1] != "safety" {
		t.Fatalf("expected status labels filtered, got %#v", tags)
	}
}

func TestToStorageFormatPassesPlainHTMLThrough(t *testing.T) {
	t.Parallel()

	out, err := ToStorageFormat("<p>Hello <strong>there</strong></p>")
	if err != nil {
		t.Fatalf("ToStorageFormat returned error: %v", err)
	}
	if out != "<p>Hello <strong>there</strong></p>" {
		t.Fatalf("expected passthrough, got %q", out)
	}

	empty, err := ToStorageFormat("   ")
	if err != nil {
		t.Fatalf("ToStorageFormat returned error: %v", err)
	}
	if empty != "" {
		t.Fatalf("expected empty output for blank input, got %q", empty)
	}
}

func TestToStorageFormatTranslatesImagePlaceholder(t *testing.T) {
	t.Parallel()

	in := `<p><div data-attachment-type="image" data-file-name="diagram.png"></div></p>`
	out, err := ToStorageFormat(in)
	if err != nil {
		t.Fatalf("ToStorageFormat returned error: %v", err)
	}
	if !strings.Contains(out, "<ac:image>") {
		t.Fatalf("expected image macro, got %q", out)
	}
	if !strings.Contains(out, `ri:filename="diagram.png"`) {
		t.Fatalf("expected attachment reference, got %q", out)
	}
	if strings.Contains(out, "data-attachment-type") {
		t.Fatalf("placeholder must be replaced, got %q", out)
	}
}

func TestToStorageFormatTranslatesPDFPlaceholder(t *testing.T) {
	t.Parallel()

	in := `<div data-attachment-type="pdf" data-file-name="manual.pdf"></div>`
	out, err := ToStorageFormat(in)
	if err != nil {
		t.Fatalf("ToStorageFormat returned error: %v", err)
	}
	if !strings.Contains(out, `ac:name="viewpdf"`) {
		t.Fatalf("expected viewpdf macro, got %q", out)
	}
	if !strings.Contains(out, `ri:filename="manual.pdf"`) {
		t.Fatalf("expected attachment reference, got %q", out)
	}
}

func TestToStorageFormatSkipsUnknownPlaceholder(t *testing.T) {
	t.Parallel()

	in := `<div data-attachment-type="archive" data-file-name="dump.zip"></div>`
	out, err := ToStorageFormat(in)
	if err != nil {
		t.Fatalf("ToStorageFormat returned error: %v", err)
	}
	if !strings.Contains(out, "data-attachment-type") {
		t.Fatalf("unknown placeholder kinds must pass through, got %q", out)
	}
}
