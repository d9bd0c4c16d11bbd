package domain

import "testing"

func TestScoreBookmark(t *testing.T) {
	tests := []struct {
		name           string
		queryStr       string
		title          string
		url            string
		expectPositive bool
	}{
		{
			name:           "exact title match",
			queryStr:       "chatgpt",
			title:          "ChatGPT",
			url:            "https://chat.openai.com",
			expectPositive: true,
		},
		{
			name:           "prefix match",
			queryStr:       "chat",
			title:          "ChatGPT",
			url:            "https://chat.openai.com",
			expectPositive: true,
		},
		{
			name:           "substring match",
			queryStr:       "gpt",
			title:          "ChatGPT",
			url:            "https://chat.openai.com",
			expectPositive: true,
		},
		{
			name:           "host match with empty title",
			queryStr:       "github",
			title:          "",
			url:            "https://www.github.com/golang/go",
			expectPositive: true,
		},
		{
			name:           "no match",
			queryStr:       "xyz",
			title:          "ChatGPT",
			url:            "https://chat.openai.com",
			expectPositive: false,
		},
		{
			name:           "multi-word match",
			queryStr:       "docker hub",
			title:          "Docker Hub",
			url:            "https://hub.docker.com",
			expectPositive: true,
		},
		{
			name:           "empty query",
			queryStr:       "   ",
			title:          "ChatGPT",
			url:            "https://chat.openai.com",
			expectPositive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookmark := Bookmark{
				ID:    "test-id",
				Title: tt.title,
				URL:   tt.url,
			}

			score := ScoreBookmark(tt.queryStr, bookmark)

			if tt.expectPositive && score <= 0 {
				t.Errorf("Expected positive score, got %f", score)
			}

			if !tt.expectPositive && score > 0 {
				t.Errorf("Expected zero score, got %f", score)
			}
		})
	}
}

func TestRankBookmarkCandidates_Order(t *testing.T) {
	bookmarks := []Bookmark{
		{Title: "Go Playground", URL: "https://go.dev/play"},
		{Title: "Go", URL: "https://go.dev"},
		{Title: "Unrelated", URL: "https://example.com"},
	}

	candidates := RankBookmarkCandidates("go", bookmarks)

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Bookmark.Title != "Go" {
		t.Errorf("Expected exact title first, got %q", candidates[0].Bookmark.Title)
	}
	for _, c := range candidates {
		if c.Bookmark.Title == "Unrelated" {
			t.Error("Unrelated bookmark should not be in candidates")
		}
	}
}
