package feed

import (
	"html"
	"testing"
)

func TestSanitizer_Run(t *testing.T) {
	sanitizer := NewSanitizer()

	tests := []struct {
		name          string
		input         string
		expectedText  string
		expectedImage string
	}{
		{
			name:         "strips script and style",
			input:        `<p>Hello <b>world</b></p><script>alert(1)</script><style>p { color: red }</style><p>Second   line</p>`,
			expectedText: "Hello world\nSecond   line",
		},
		{
			name:          "first image only",
			input:         `<div><img src="/a.jpg"><img src="b.jpg"></div><p>Text</p>`,
			expectedText:  "Text",
			expectedImage: "/a.jpg",
		},
		{
			name:          "image inside script is ignored",
			input:         `<script>var s = "<img src='evil.jpg'>";</script><p>x</p><img src="good.jpg">`,
			expectedText:  "x",
			expectedImage: "good.jpg",
		},
		{
			name:         "trims lines and drops empty ones",
			input:        "  line one  \n\n\t line two \n",
			expectedText: "line one\nline two",
		},
		{
			name:         "line breaks",
			input:        "one<br>two<br/>three",
			expectedText: "one\ntwo\nthree",
		},
		{
			name:         "escaped markup is reduced",
			input:        "&lt;p&gt;Hi&lt;/p&gt;",
			expectedText: "Hi",
		},
		{
			name:         "comparison operators survive",
			input:        "x < y && y > z",
			expectedText: "x < y && y > z",
		},
		{
			name:         "unicode is composed",
			input:        "cafe\u0301",
			expectedText: "caf\u00e9",
		},
		{
			name:         "empty input",
			input:        "",
			expectedText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, image := sanitizer.Run(tt.input)
			if text != tt.expectedText {
				t.Errorf("Expected text %q, got %q", tt.expectedText, text)
			}
			if image != tt.expectedImage {
				t.Errorf("Expected image %q, got %q", tt.expectedImage, image)
			}
		})
	}
}

func TestSanitizer_Idempotent(t *testing.T) {
	sanitizer := NewSanitizer()

	inputs := []string{
		`<article><h1>Title</h1><p>Paragraph with <a href="https://example.com">link</a>.</p><ul><li>one</li><li>two</li></ul></article>`,
		`<p>a &amp;lt; b</p>`,
		`&lt;b&gt;bold&lt;/b&gt; and &amp;amp;`,
		"x < y && y > z",
		"<div>\n   spaced   \n\n</div><pre>  code\n  block</pre>",
		`<table><tr><td>cell 1</td><td>cell 2</td></tr></table>`,
		"plain text\r\nwith CRLF\rand CR",
		"<p>unclosed <b>tags <i>everywhere",
		"\u00a0\u00a0indented with nbsp\u00a0",
		`<img src="only-image.png">`,
	}

	deep := "<b>x</b>"
	for i := 0; i < 8; i++ {
		deep = html.EscapeString(deep)
	}
	inputs = append(inputs, deep)

	for _, input := range inputs {
		once, _ := sanitizer.Run(input)
		twice, _ := sanitizer.Run(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestSanitizer_DeeplyEscaped(t *testing.T) {
	sanitizer := NewSanitizer()

	input := "&lt;b&gt;x"
	for i := 0; i < 6; i++ {
		input = html.EscapeString(input)
	}

	text, _ := sanitizer.Run(input)
	if text != "x" {
		t.Errorf("Expected 'x', got %q", text)
	}
}

func TestSanitizer_Line(t *testing.T) {
	sanitizer := NewSanitizer()

	got := sanitizer.Line("Breaking <em>news</em>\n today")
	if got != "Breaking news today" {
		t.Errorf("Expected 'Breaking news today', got %q", got)
	}
}
