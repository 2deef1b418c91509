package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/findora/tool-radar/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const redditUserAgent = "Tool-Radar/1.0"

// RedditSource reads the hot listings of AI subreddits through the Reddit API
type RedditSource struct {
	clientID     string
	clientSecret string
	subreddits   []string
	client       *resty.Client
	authURL      string
	apiURL       string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListingResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewRedditSource creates a new Reddit source over the given subreddits
func NewRedditSource(clientID, clientSecret string, subreddits []string) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		subreddits:   subreddits,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", redditUserAgent),
		authURL: "https://www.reddit.com/api/v1/access_token",
		apiURL:  "https://oauth.reddit.com",
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) FetchMentions(ctx context.Context, keywords []string, since time.Duration) ([]models.Mention, error) {
	if !r.IsEnabled() {
		logrus.Debug("Reddit source disabled - missing credentials")
		return nil, nil
	}

	token, err := r.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit authentication failed: %w", err)
	}

	var allMentions []models.Mention
	cutoff := time.Now().Add(-since)

	for _, subreddit := range r.subreddits {
		posts, err := r.hotPosts(ctx, token, subreddit)
		if err != nil {
			logrus.Errorf("Failed to fetch r/%s: %v", subreddit, err)
			continue
		}
		allMentions = append(allMentions, postsToMentions(posts, keywords, cutoff)...)
	}

	return deduplicateMentions(allMentions), nil
}

// token returns a cached access token, fetching a new one when it is about to expire
func (r *RedditSource) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.expiresAt) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.authURL)
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("reddit token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("reddit token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	r.expiresAt = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}

func (r *RedditSource) hotPosts(ctx context.Context, token, subreddit string) ([]redditPost, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("limit", "100").
		Get(fmt.Sprintf("%s/r/%s/hot", r.apiURL, subreddit))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	var listing redditListingResponse
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, err
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func postsToMentions(posts []redditPost, keywords []string, cutoff time.Time) []models.Mention {
	var mentions []models.Mention

	for _, post := range posts {
		createdAt := time.Unix(int64(post.Created), 0)
		if createdAt.Before(cutoff) {
			continue
		}

		matched := matchKeywords(post.Title+" "+post.Selftext, keywords)
		if len(matched) == 0 {
			continue
		}

		mentions = append(mentions, models.Mention{
			ID:           fmt.Sprintf("reddit_%s", post.ID),
			Source:       "reddit",
			Platform:     fmt.Sprintf("r/%s", post.Subreddit),
			Title:        post.Title,
			Content:      post.Selftext,
			Author:       post.Author,
			URL:          fmt.Sprintf("https://reddit.com%s", post.Permalink),
			CreatedAt:    createdAt,
			Score:        post.Score,
			CommentCount: post.NumComments,
			Keywords:     matched,
		})
	}

	return mentions
}
