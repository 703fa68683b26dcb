package docs

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func TestTopics(t *testing.T) {
	// Every topic listed in readme.md can be loaded, and every .md file but
	// readme.md is listed in readme.md.
	file, err := os.Open("readme.md")
	if err != nil {
		t.Fatalf("failed to open readme.md: %v", err)
	}
	defer file.Close()

	var topicsInReadme []string
	scanner := bufio.NewScanner(file)
	topicRegex := regexp.MustCompile(`^\*\s+([^:]+):.*$`)
	for scanner.Scan() {
		if m := topicRegex.FindStringSubmatch(scanner.Text()); len(m) > 1 {
			topicsInReadme = append(topicsInReadme, strings.TrimSpace(m[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error scanning readme.md: %v", err)
	}

	for _, topic := range topicsInReadme {
		t.Run("load_"+topic, func(t *testing.T) {
			if _, err := GetTopic(topic); err != nil {
				t.Errorf("failed to get topic %q: %v", topic, err)
			}
		})
	}

	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatalf("failed to glob *.md: %v", err)
	}
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".md")
		if name != "readme" && !slices.Contains(topicsInReadme, name) {
			t.Errorf("topic %q is not listed in docs/readme.md", name)
		}
	}

	all, err := GetAllTopics()
	if err != nil {
		t.Fatalf("GetAllTopics() failed: %v", err)
	}
	if !slices.Equal(all, slices.Sorted(slices.Values(topicsInReadme))) {
		t.Errorf("GetAllTopics() = %v, want %v", all, topicsInReadme)
	}
}

func TestTopicHeadings(t *testing.T) {
	// Topics are concatenated by the topic command, each starts with its own
	// level one heading.
	topics, err := GetAllTopics()
	if err != nil {
		t.Fatal(err)
	}
	for _, topic := range append(topics, "readme") {
		content, err := GetTopic(topic)
		if err != nil {
			t.Fatal(err)
		}
		src := []byte(content)
		root := goldmark.DefaultParser().Parse(text.NewReader(src))
		h, ok := root.FirstChild().(*ast.Heading)
		if !ok || h.Level != 1 {
			t.Errorf("topic %q does not start with a level one heading", topic)
		}
	}
}

func TestGetTopics(t *testing.T) {
	all, err := GetTopic("*")
	if err != nil {
		t.Fatalf("GetTopic(*) failed: %v", err)
	}
	for _, want := range []string{"# Events", "# Cash", "# Options", "# Histories", "# Configuration"} {
		if !strings.Contains(all, want) {
			t.Errorf("GetTopic(*) does not contain %q", want)
		}
	}
	if _, err := GetTopics("events", "missing"); err == nil {
		t.Error("GetTopics() with an unknown topic succeeded")
	}
}
