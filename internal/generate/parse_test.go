package generate

import (
	"errors"
	"testing"
)

func TestParseFiles(t *testing.T) {
	output := "Here you go.\n" +
		"=== FILE: index.html ===\n" +
		"<html>\n<body></body>\n</html>\n" +
		"=== END FILE ===\n" +
		"=== FILE: `css/site.css` ===\n" +
		"```css\n" +
		"body { color: #222; }\n" +
		"```\n" +
		"=== END FILE ===\n"

	files, err := ParseFiles(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files", len(files))
	}
	if files[0].Path != "index.html" || files[0].Content != "<html>\n<body></body>\n</html>\n" {
		t.Errorf("index.html = %+v", files[0])
	}
	if files[1].Path != "css/site.css" || files[1].Content != "body { color: #222; }\n" {
		t.Errorf("site.css = %+v", files[1])
	}
}

func TestParseFiles_LastDuplicateWins(t *testing.T) {
	output := "=== FILE: a.css ===\nold\n=== END FILE ===\n=== FILE: ./a.css ===\nnew\n=== END FILE ===\n"
	files, err := ParseFiles(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Content != "new\n" {
		t.Fatalf("files = %+v", files)
	}
}

func TestParseFiles_Errors(t *testing.T) {
	tests := []struct {
		name   string
		output string
		is     error
	}{
		{"no blocks", "I cannot do that.", ErrNoFiles},
		{"unterminated", "=== FILE: index.html ===\n<html>", ErrUnterminated},
		{"escaping path", "=== FILE: ../etc/passwd ===\nx\n=== END FILE ===\n", nil},
		{"absolute path", "=== FILE: /tmp/x ===\nx\n=== END FILE ===\n", nil},
		{"empty path", "=== FILE:  ===\nx\n=== END FILE ===\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFiles(tt.output)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}
