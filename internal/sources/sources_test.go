package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/findora/tool-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedditSource_GetName(t *testing.T) {
	source := NewRedditSource("client_id", "client_secret", nil)
	assert.Equal(t, "reddit", source.GetName())
}

func TestRedditSource_IsEnabled(t *testing.T) {
	tests := []struct {
		name         string
		clientID     string
		clientSecret string
		expected     bool
	}{
		{
			name:         "Both credentials provided",
			clientID:     "client_id",
			clientSecret: "client_secret",
			expected:     true,
		},
		{
			name:         "Missing client ID",
			clientID:     "",
			clientSecret: "client_secret",
			expected:     false,
		},
		{
			name:         "Missing client secret",
			clientID:     "client_id",
			clientSecret: "",
			expected:     false,
		},
		{
			name:         "Both missing",
			clientID:     "",
			clientSecret: "",
			expected:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewRedditSource(tt.clientID, tt.clientSecret, nil)
			assert.Equal(t, tt.expected, source.IsEnabled())
		})
	}
}

func TestRedditSource_DisabledFetchesNothing(t *testing.T) {
	mentions, err := NewRedditSource("", "", []string{"ChatGPT"}).
		FetchMentions(context.Background(), []string{"Claude"}, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestRedditSource_FetchMentions(t *testing.T) {
	now := time.Now().Unix()
	tokenRequests := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/r/ChatGPT/hot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"data":{"children":[
			{"data":{"id":"a1","title":"Claude vs ChatGPT for coding","selftext":"","author":"u1","subreddit":"ChatGPT","permalink":"/r/ChatGPT/a1","created_utc":%d,"score":12,"num_comments":4}},
			{"data":{"id":"a2","title":"Old Claude post","author":"u2","subreddit":"ChatGPT","permalink":"/r/ChatGPT/a2","created_utc":%d}},
			{"data":{"id":"a3","title":"Claudette is not a tool","author":"u3","subreddit":"ChatGPT","permalink":"/r/ChatGPT/a3","created_utc":%d}}
		]}}`, now-60, now-10*86400, now-60)
	})
	mux.HandleFunc("/r/broken/hot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	source := NewRedditSource("id", "secret", []string{"broken", "ChatGPT"})
	source.authURL = server.URL + "/api/v1/access_token"
	source.apiURL = server.URL

	mentions, err := source.FetchMentions(context.Background(), []string{"Claude", "Midjourney"}, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, mentions, 1)

	m := mentions[0]
	assert.Equal(t, "reddit_a1", m.ID)
	assert.Equal(t, "r/ChatGPT", m.Platform)
	assert.Equal(t, "https://reddit.com/r/ChatGPT/a1", m.URL)
	assert.Equal(t, []string{"Claude"}, m.Keywords)
	assert.Equal(t, 12, m.Score)
	assert.Equal(t, 4, m.CommentCount)

	// the token is cached between runs
	_, err = source.FetchMentions(context.Background(), []string{"Claude"}, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, tokenRequests)
}

func TestRedditSource_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewRedditSource("id", "secret", []string{"ChatGPT"})
	source.authURL = server.URL

	_, err := source.FetchMentions(context.Background(), []string{"Claude"}, time.Hour)
	assert.Error(t, err)
}

func TestHackerNewsSource_GetName(t *testing.T) {
	source := NewHackerNewsSource()
	assert.Equal(t, "hackernews", source.GetName())
}

func TestHackerNewsSource_IsEnabled(t *testing.T) {
	source := NewHackerNewsSource()
	assert.True(t, source.IsEnabled())
}

func TestHackerNewsSource_FetchMentions(t *testing.T) {
	now := time.Now().Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/newstories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2, 3, 4, 5]`)
	})
	mux.HandleFunc("/item/1.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":1,"type":"story","by":"pg","time":%d,"title":"Show HN: Built with Suno","url":"https://example.com/suno","score":40,"descendants":7}`, now-100)
	})
	mux.HandleFunc("/item/2.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":2,"type":"comment","by":"dang","time":%d,"text":"I prefer <i>Runway</i> for video<p>and Suno for music"}`, now-50)
	})
	mux.HandleFunc("/item/3.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":3,"type":"story","time":%d,"title":"Suno from last month"}`, now-40*86400)
	})
	mux.HandleFunc("/item/4.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/item/5.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":5,"type":"story","time":%d,"title":"Unrelated"}`, now-10)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	source := NewHackerNewsSource()
	source.baseURL = server.URL
	source.itemLimit = 4

	mentions, err := source.FetchMentions(context.Background(), []string{"Suno", "Runway"}, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, mentions, 2)

	assert.Equal(t, "hackernews_1", mentions[0].ID)
	assert.Equal(t, "https://example.com/suno", mentions[0].URL)
	assert.Equal(t, []string{"Suno"}, mentions[0].Keywords)

	assert.Equal(t, "hackernews_2", mentions[1].ID)
	assert.Equal(t, "https://news.ycombinator.com/item?id=2", mentions[1].URL)
	assert.Equal(t, "I prefer Runway for videoand Suno for music", mentions[1].Content)
	assert.Equal(t, []string{"Suno", "Runway"}, mentions[1].Keywords)
}

func TestMatchKeywords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		expected []string
	}{
		{name: "Case insensitive", text: "Trying CLAUDE today", keywords: []string{"Claude"}, expected: []string{"Claude"}},
		{name: "Whole words only", text: "Claudette and runways", keywords: []string{"Claude", "Runway"}, expected: nil},
		{name: "Multi word names", text: "github copilot wrote this", keywords: []string{"GitHub Copilot"}, expected: []string{"GitHub Copilot"}},
		{name: "Punctuation bounds", text: "(remove.bg)", keywords: []string{"remove.bg"}, expected: []string{"remove.bg"}},
		{name: "Second occurrence matches", text: "sunofabeach suno", keywords: []string{"Suno"}, expected: []string{"Suno"}},
		{name: "Empty keyword ignored", text: "anything", keywords: []string{"", " "}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchKeywords(tt.text, tt.keywords))
		})
	}
}

func TestDeduplicateMentions(t *testing.T) {
	mentions := []models.Mention{
		{ID: "1", Title: "First mention"},
		{ID: "2", Title: "Second mention"},
		{ID: "1", Title: "Duplicate mention"},
		{ID: "3", Title: "Third mention"},
	}

	unique := deduplicateMentions(mentions)

	assert.Len(t, unique, 3)
	assert.Equal(t, "1", unique[0].ID)
	assert.Equal(t, "2", unique[1].ID)
	assert.Equal(t, "3", unique[2].ID)
}
