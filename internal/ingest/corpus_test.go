package ingest

import (
	"strings"
	"testing"
)

func TestLoadCorpus(t *testing.T) {
	input := `{"title": "First", "content": "Alpha body."}

{"title": "Second", "content": "Beta body."}
{"title": "Third", "content": "Gamma body."}
`
	docs, err := LoadCorpus(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	if docs[0].Title != "First" || docs[0].Content != "Alpha body." {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[2].Title != "Third" {
		t.Errorf("docs[2] = %+v, order not preserved", docs[2])
	}
}

func TestLoadCorpusEmpty(t *testing.T) {
	docs, err := LoadCorpus(strings.NewReader("\n\n"))
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d docs, want 0", len(docs))
	}
}

func TestLoadCorpusErrors(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantLine string
	}{
		{
			name:     "invalid json",
			input:    "{\"title\": \"ok\", \"content\": \"ok\"}\nnot json at all\n",
			wantLine: "line 2",
		},
		{
			name:     "missing title",
			input:    "{\"content\": \"body only\"}\n",
			wantLine: "line 1",
		},
		{
			name:     "missing content",
			input:    "{\"title\": \"t\"}\n",
			wantLine: "line 1",
		},
		{
			name:     "blank title",
			input:    "{\"title\": \"  \", \"content\": \"c\"}\n",
			wantLine: "line 1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCorpus(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantLine) {
				t.Errorf("error %q does not name %s", err, tc.wantLine)
			}
		})
	}
}

func TestLoadCorpusFileMissing(t *testing.T) {
	if _, err := LoadCorpusFile("/nonexistent/corpus.jsonl"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
