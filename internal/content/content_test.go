package content

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_PlainText(t *testing.T) {
	p := Parse("hello there")
	if p.Kind != KindText {
		t.Fatalf("expected text, got %s", p.Kind)
	}
	if p.Text != "hello there" {
		t.Errorf("unexpected text: %q", p.Text)
	}
}

func TestParse_FileReference(t *testing.T) {
	p := Parse(`FILE::{"name":"pic.png","mime":"image/png","size":123,"url":"/files/abc"}`)
	if p.Kind != KindFile {
		t.Fatalf("expected file, got %s", p.Kind)
	}
	if p.File.Name != "pic.png" || p.File.Mime != "image/png" || p.File.Size != 123 {
		t.Errorf("unexpected ref: %+v", p.File)
	}
}

func TestParse_MalformedFallsBackToText(t *testing.T) {
	cases := []string{
		"FILE::not json",
		`FILE::{"mime":"image/png"}`,  // missing name
		`FILE::{"name":"x"}`,          // missing url and data
		`FILE::{"name":"x","url":""}`, // empty locator
		"FILE::",
	}
	for _, raw := range cases {
		p := Parse(raw)
		if p.Kind != KindText {
			t.Errorf("%q: expected fallback to text, got %s", raw, p.Kind)
		}
		if p.Text != raw {
			t.Errorf("%q: fallback must preserve the raw payload", raw)
		}
	}
}

func TestEncodeFile_SniffsMime(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	payload, err := EncodeFile("shot.png", png, "/files/abc")
	if err != nil {
		t.Fatalf("EncodeFile failed: %v", err)
	}
	if !strings.HasPrefix(payload, "FILE::") {
		t.Fatalf("missing prefix: %q", payload)
	}

	var ref FileRef
	if err := json.Unmarshal([]byte(payload[len("FILE::"):]), &ref); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if ref.Mime != "image/png" {
		t.Errorf("expected sniffed image/png, got %q", ref.Mime)
	}
	if ref.Size != int64(len(png)) {
		t.Errorf("expected size %d, got %d", len(png), ref.Size)
	}

	// round trip through Parse
	p := Parse(payload)
	if p.Kind != KindFile || p.File.Name != "shot.png" {
		t.Errorf("round trip failed: %+v", p)
	}
}

func TestEncodeFile_UnknownContent(t *testing.T) {
	payload, err := EncodeFile("notes.txt", []byte("plain words"), "/files/def")
	if err != nil {
		t.Fatalf("EncodeFile failed: %v", err)
	}
	p := Parse(payload)
	if p.File.Mime != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %q", p.File.Mime)
	}
}

func TestEncodeFile_RequiresName(t *testing.T) {
	if _, err := EncodeFile("", []byte("x"), "/files/x"); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestSanitize(t *testing.T) {
	out := Sanitize(`hi <script>alert(1)</script> there`)
	if strings.Contains(out, "script") {
		t.Errorf("script tag survived: %q", out)
	}
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("a", 100)
	if got := Excerpt(long, 48); len([]rune(got)) != 48 {
		t.Errorf("expected 48 runes, got %d", len([]rune(got)))
	}
	if got := Excerpt("short", 48); got != "short" {
		t.Errorf("short text should pass through, got %q", got)
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("**bold** and <script>x</script>")
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("markdown not rendered: %q", out)
	}
	if strings.Contains(out, "script") {
		t.Errorf("unsafe HTML survived: %q", out)
	}
}
