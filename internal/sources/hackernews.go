package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/findora/tool-radar/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// HackerNewsSource implements Hacker News API source
type HackerNewsSource struct {
	client    *resty.Client
	baseURL   string
	itemLimit int
	workers   int
}

type hackerNewsItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource() *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", redditUserAgent),
		baseURL:   "https://hacker-news.firebaseio.com/v0",
		itemLimit: 500,
		workers:   8,
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // Hacker News API doesn't require authentication
}

func (h *HackerNewsSource) FetchMentions(ctx context.Context, keywords []string, since time.Duration) ([]models.Mention, error) {
	itemIDs, err := h.getRecentItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}

	if len(itemIDs) > h.itemLimit {
		itemIDs = itemIDs[:h.itemLimit]
	}

	cutoff := time.Now().Add(-since)
	found := make([]*models.Mention, len(itemIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	for i, itemID := range itemIDs {
		i, itemID := i, itemID
		g.Go(func() error {
			item, err := h.getItem(gctx, itemID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logrus.Debugf("Failed to get HN item %d: %v", itemID, err)
				return nil
			}
			found[i] = itemToMention(item, keywords, cutoff)
			return nil
		})
	}

	// items are written by index so the result keeps the feed order
	var allMentions []models.Mention
	waitErr := g.Wait()
	for _, m := range found {
		if m != nil {
			allMentions = append(allMentions, *m)
		}
	}

	return allMentions, waitErr
}

func itemToMention(item *hackerNewsItem, keywords []string, cutoff time.Time) *models.Mention {
	if item == nil || item.Time == 0 {
		return nil
	}

	createdAt := time.Unix(item.Time, 0)
	if createdAt.Before(cutoff) {
		return nil
	}

	text := plainText(item.Text)
	matched := matchKeywords(item.Title+" "+text, keywords)
	if len(matched) == 0 {
		return nil
	}

	mention := &models.Mention{
		ID:           fmt.Sprintf("hackernews_%d", item.ID),
		Source:       "hackernews",
		Platform:     "Hacker News",
		Title:        item.Title,
		Content:      text,
		Author:       item.By,
		URL:          fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID),
		CreatedAt:    createdAt,
		Score:        item.Score,
		CommentCount: item.Descendants,
		Keywords:     matched,
	}

	// Use external URL if available and it's a story
	if item.Type == "story" && item.URL != "" {
		mention.URL = item.URL
	}

	return mention
}

// plainText strips the HTML markup HN uses in item text
func plainText(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (h *HackerNewsSource) getRecentItems(ctx context.Context) ([]int, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(h.baseURL + "/newstories.json")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var itemIDs []int
	if err := json.Unmarshal(resp.Body(), &itemIDs); err != nil {
		return nil, err
	}

	return itemIDs, nil
}

func (h *HackerNewsSource) getItem(ctx context.Context, itemID int) (*hackerNewsItem, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/item/%d.json", h.baseURL, itemID))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d for item %d", resp.StatusCode(), itemID)
	}

	var item hackerNewsItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, err
	}

	return &item, nil
}
