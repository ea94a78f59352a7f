package models

import "time"

// NewsArticle is a headline from an RSS feed.
type NewsArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"` // feed title, or "sample" for canned headlines
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Tickers     []string  `json:"tickers,omitempty"` // related tickers
}
