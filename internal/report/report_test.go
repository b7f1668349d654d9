package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const sample = "\nANALYZE call(1 ~ 40) PERIOD(DOWNLOAD)\n" +
	"\tmean throughput: 2000.00 B/s\n" +
	"1.1.1.1 ---> 10.0.0.2 (TCP) [12 packets]:\n" +
	"\tsrcPort: 443 > dstPort: 5000: 12 packets\n" +
	"\tmean size: 20.00 Bytes\n"

func TestTextWriter_BlocksAreNotInterleaved(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			block := strings.Repeat(fmt.Sprintf("%02d", i), 500) + "\n"
			if err := w.WriteBlock([]byte(block)); err != nil {
				t.Errorf("WriteBlock failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("Expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line != strings.Repeat(line[:2], 500) {
			t.Fatalf("Block was interleaved: %.20s...", line)
		}
	}
}

func TestFileWriter_FlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.txt")
	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	if err := w.WriteBlock([]byte(sample)); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if string(data) != sample {
		t.Errorf("Unexpected report content: %q", data)
	}
}

func TestFileWriter_DiscardKeepsPreviousReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.txt")
	if err := os.WriteFile(path, []byte("previous run\n"), 0644); err != nil {
		t.Fatalf("Failed to write previous report: %v", err)
	}

	// 1. A staged report is discarded.
	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	if err := w.WriteBlock([]byte(sample)); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	w.Discard()

	// 2. The previous report survives and no staging file is left behind.
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "previous run\n" {
		t.Errorf("Previous report was touched: %q (%v)", data, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected only the report in the directory, got %d entries", len(entries))
	}
}

func TestFileWriter_MissingDirectory(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "result.txt")); err == nil {
		t.Error("Expected an error for a missing directory")
	}
}

func TestToMarkdown_Structure(t *testing.T) {
	md := string(ToMarkdown([]byte(sample)))

	if !strings.Contains(md, "## ANALYZE call(1 ~ 40) PERIOD(DOWNLOAD)\n") {
		t.Errorf("Missing period heading:\n%s", md)
	}
	if !strings.Contains(md, `### 1.1.1.1 ---\> 10.0.0.2 (TCP) \[12 packets\]:`) {
		t.Errorf("Missing escaped group heading:\n%s", md)
	}
	if strings.Count(md, "```") != 4 {
		t.Errorf("Expected two fenced blocks:\n%s", md)
	}
	if !strings.Contains(md, "```\nsrcPort: 443 > dstPort: 5000: 12 packets\nmean size: 20.00 Bytes\n```") {
		t.Errorf("Statistic lines not fenced:\n%s", md)
	}
}

func TestRenderHTML(t *testing.T) {
	page := string(RenderHTML("result.txt", []byte(sample)))

	for _, want := range []string{
		"<title>result.txt</title>",
		"<h2",
		"ANALYZE call(1 ~ 40) PERIOD(DOWNLOAD)",
		"1.1.1.1 ---&gt; 10.0.0.2 (TCP) [12 packets]:",
		"<pre><code>",
		"mean throughput: 2000.00 B/s",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("Rendered page is missing %q:\n%s", want, page)
		}
	}
}
