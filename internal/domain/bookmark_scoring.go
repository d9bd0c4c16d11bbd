package domain

import (
	"net/url"
	"slices"
	"strings"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier is better)
	ScorePositionBonus = 10.0

	// Exact title match bonus
	ScoreExactTitleBonus = 200.0

	// Host and folder matches count for less than title matches
	ScoreHostWeight   = 0.6
	ScoreFolderWeight = 0.3
)

// BookmarkCandidate represents a bookmark candidate with its match score
type BookmarkCandidate struct {
	Bookmark Bookmark
	Score    float64
}

// ScoreBookmark calculates the match score for a bookmark against a query string.
// The title is scored first; the URL host and the folder path are fallbacks.
func ScoreBookmark(queryStr string, bookmark Bookmark) float64 {
	queryStr = strings.ToLower(strings.TrimSpace(queryStr))
	if queryStr == "" {
		return 0.0
	}

	title := strings.ToLower(bookmark.Title)
	if title != "" && queryStr == title {
		return ScoreExactMatch + ScoreExactTitleBonus
	}

	best := scoreText(queryStr, title)
	if s := scoreText(queryStr, hostOf(bookmark.URL)) * ScoreHostWeight; s > best {
		best = s
	}
	if s := scoreText(queryStr, strings.ToLower(bookmark.FolderPath.String())) * ScoreFolderWeight; s > best {
		best = s
	}
	return best
}

func scoreText(queryStr, text string) float64 {
	if text == "" {
		return 0.0
	}

	// Prefix match
	if strings.HasPrefix(text, queryStr) {
		return ScorePrefixMatch
	}

	// Substring match
	if index := strings.Index(text, queryStr); index >= 0 {
		// Earlier substring matches get higher score
		substringBonus := ScorePositionBonus * (1.0 - float64(index)/float64(len(text)))
		return ScoreSubstringMatch + substringBonus
	}

	// Word-based match: every query word appears somewhere
	queryWords := strings.Fields(queryStr)
	if len(queryWords) > 1 {
		allMatch := true
		for _, word := range queryWords {
			if !strings.Contains(text, word) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return ScoreFuzzyMatch
		}
	}

	similarity := calculateSimilarity(queryStr, text)
	if similarity > 0.5 {
		return ScoreFuzzyMatch * similarity
	}

	return 0.0
}

// hostOf returns the lowercased host of raw without a leading "www.".
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// calculateSimilarity is the ratio of query characters found in s2.
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0.0
	}

	matches := 0
	for _, c := range s1 {
		if strings.ContainsRune(s2, c) {
			matches++
		}
	}

	return float64(matches) / float64(len([]rune(s1)))
}

// RankBookmarkCandidates ranks bookmarks by score, best first.
// Bookmarks that do not match at all are dropped; ties keep input order.
func RankBookmarkCandidates(queryStr string, bookmarks []Bookmark) []BookmarkCandidate {
	candidates := make([]BookmarkCandidate, 0, len(bookmarks))

	for _, bookmark := range bookmarks {
		score := ScoreBookmark(queryStr, bookmark)
		if score == 0.0 {
			continue
		}
		candidates = append(candidates, BookmarkCandidate{
			Bookmark: bookmark,
			Score:    score,
		})
	}

	slices.SortStableFunc(candidates, func(a, b BookmarkCandidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return candidates
}
