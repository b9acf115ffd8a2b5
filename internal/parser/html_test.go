package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_HeadingsParagraphsTables(t *testing.T) {
	input := `<html><head><title>Lab Notes</title><script>var x = 1;</script></head>
<body>
<nav>skip me</nav>
<h1>Results</h1>
<p>The   sample was
 heated.</p>
<h2>Data</h2>
<table>
<tr><th>Temp</th><th>Yield</th></tr>
<tr><td>20</td><td>0.4</td></tr>
</table>
<ul><li>first item</li></ul>
</body></html>`

	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "lab.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Lab Notes" {
		t.Errorf("expected title %q, got %q", "Lab Notes", doc.Title)
	}

	want := strings.Join([]string{
		"# Results",
		"The sample was heated.",
		"## Data",
		"| Temp | Yield |\n| --- | --- |\n| 20 | 0.4 |",
		"first item",
	}, "\n\n")
	if doc.Text != want {
		t.Errorf("unexpected text\nwant %q\ngot  %q", want, doc.Text)
	}
}

func TestHeadingLevel(t *testing.T) {
	cases := map[string]int{"h1": 1, "h6": 6, "h7": 0, "p": 0, "hr": 0}
	for tag, want := range cases {
		if got := headingLevel(tag); got != want {
			t.Errorf("headingLevel(%q) = %d, want %d", tag, got, want)
		}
	}
}
