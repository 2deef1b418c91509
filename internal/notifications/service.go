package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/findora/tool-radar/internal/config"
	"github.com/findora/tool-radar/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	maxRisingTools  = 5
	maxTeamsMention = 5
	maxEmailMention = 10
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether any channel is configured
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(ctx context.Context, report *models.Report) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, report *models.Report) error {
	message := s.buildTeamsMessage(report)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Tool Radar Trends - %s", capitalize(report.Period)),
		Text:    fmt.Sprintf("Found %d new mentions of tracked AI tools", report.TotalMentions),
	}

	facts := []TeamsFact{
		{Name: "New Mentions", Value: fmt.Sprintf("%d", report.TotalMentions)},
		{Name: "Generated", Value: report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
	for _, c := range sortedCounts(report.Summary["sources"]) {
		facts = append(facts, TeamsFact{
			Name:  fmt.Sprintf("%s Mentions", capitalize(c.name)),
			Value: fmt.Sprintf("%d", c.count),
		})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Rising) > 0 {
		var lines []string
		for i, tool := range report.Rising {
			if i >= maxRisingTools {
				break
			}
			lines = append(lines, fmt.Sprintf("**[%s](%s)** (%s) - trend %d, %d mentions",
				tool.Name, tool.OfficialURL, tool.Category, tool.TrendScore, tool.MentionCount))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Rising Tools",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.Mentions) > 0 {
		var lines []string
		for i, mention := range report.Mentions {
			if i >= maxTeamsMention {
				break
			}
			lines = append(lines, fmt.Sprintf("**[%s](%s)** - %s (%s)",
				mention.Title, mention.URL, mention.Platform, mention.CreatedAt.Format("Jan 2")))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Recent Mentions",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.Report) error {
	subject := fmt.Sprintf("Tool Radar Trends - %s (%d mentions)",
		capitalize(report.Period), report.TotalMentions)

	htmlBody, err := s.buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"title":    capitalize,
	"truncate": truncate,
}).Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Tool Radar Trends</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #4b3fd1; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .tool { border-left: 4px solid #4b3fd1; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .mention { border-left: 4px solid #605e5c; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Tool Radar Trends</h1>
        <p>{{.Period | title}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>New Mentions:</strong> {{.TotalMentions}}</p>
        {{range $source, $count := .Summary.sources}}
            <p><strong>{{$source | title}}:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .Rising}}
    <h2>Rising Tools</h2>
    {{range $index, $tool := .Rising}}{{if lt $index 5}}
        <div class="tool">
            <a href="{{$tool.OfficialURL}}" target="_blank"><strong>{{$tool.Name}}</strong></a>
            <div class="meta">{{$tool.Category}} | Trend {{$tool.TrendScore}} | {{$tool.MentionCount}} mentions</div>
        </div>
    {{end}}{{end}}
    {{end}}

    {{if .Mentions}}
    <h2>Recent Mentions</h2>
    {{range $index, $mention := .Mentions}}{{if lt $index 10}}
        <div class="mention">
            <a href="{{$mention.URL}}" target="_blank">{{$mention.Title}}</a>
            <div class="meta">By {{$mention.Author}} on {{$mention.Platform}} | {{$mention.CreatedAt.Format "Jan 2, 2006"}}{{if $mention.Score}} | Score: {{$mention.Score}}{{end}}</div>
            {{if $mention.Content}}<p>{{truncate $mention.Content 200}}</p>{{end}}
        </div>
    {{end}}{{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by Tool Radar.</small></p>
</body>
</html>
`))

func (s *Service) buildEmailHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Tool Radar Trends - %s\n", capitalize(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("New Mentions: %d\n", report.TotalMentions))
	for _, c := range sortedCounts(report.Summary["sources"]) {
		text.WriteString(fmt.Sprintf("%s: %d\n", capitalize(c.name), c.count))
	}

	if len(report.Rising) > 0 {
		text.WriteString("\nRISING TOOLS\n")
		text.WriteString("============\n")
		for i, tool := range report.Rising {
			if i >= maxRisingTools {
				break
			}
			text.WriteString(fmt.Sprintf("%d. %s (%s) - trend %d, %d mentions\n",
				i+1, tool.Name, tool.Category, tool.TrendScore, tool.MentionCount))
		}
	}

	if len(report.Mentions) > 0 {
		text.WriteString("\nRECENT MENTIONS\n")
		text.WriteString("===============\n")

		for i, mention := range report.Mentions {
			if i >= maxEmailMention {
				break
			}
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, mention.Title))
			text.WriteString(fmt.Sprintf("   Source: %s | Author: %s | Date: %s\n",
				mention.Platform, mention.Author, mention.CreatedAt.Format("Jan 2, 2006")))
			text.WriteString(fmt.Sprintf("   URL: %s\n", mention.URL))
			if mention.Content != "" {
				text.WriteString(fmt.Sprintf("   Content: %s\n", truncate(mention.Content, 200)))
			}
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by Tool Radar.\n")

	return text.String()
}

type namedCount struct {
	name  string
	count int
}

// sortedCounts orders a summary count map by count, then name
func sortedCounts(v interface{}) []namedCount {
	m, ok := v.(map[string]int)
	if !ok {
		return nil
	}
	counts := make([]namedCount, 0, len(m))
	for name, count := range m {
		counts = append(counts, namedCount{name, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	return counts
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length]) + "..."
}
