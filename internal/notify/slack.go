package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/learning"
)

const footer = "propfolio"

// Notifier sends notifications to Slack
type Notifier struct {
	config     *config.SlackConfig
	httpClient *http.Client
}

// SlackMessage represents a Slack webhook message
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// New creates a new Slack notifier
func New(cfg *config.SlackConfig) *Notifier {
	if cfg == nil {
		cfg = &config.SlackConfig{Enabled: false}
	}
	return &Notifier{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsEnabled returns true if notifications are enabled
func (n *Notifier) IsEnabled() bool {
	return n.config != nil && n.config.Enabled && n.config.WebhookURL != ""
}

// PropertyOnboarded sends notification when a property finishes onboarding
func (n *Notifier) PropertyOnboarded(propertyID, address string, duration time.Duration) error {
	if !n.IsEnabled() {
		return nil
	}

	msg := SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: ":house:",
		Attachments: []SlackAttachment{
			{
				Color: "#36a64f", // green
				Title: "Property Onboarded",
				Fields: []SlackField{
					{Title: "Property", Value: propertyID, Short: true},
					{Title: "Duration", Value: formatDuration(duration), Short: true},
					{Title: "Address", Value: address, Short: false},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return n.send(msg)
}

// LearningMigrated sends notification when learning data was migrated
func (n *Notifier) LearningMigrated(accountID string, migrated learning.Counts) error {
	if !n.IsEnabled() {
		return nil
	}

	msg := SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: ":white_check_mark:",
		Text: fmt.Sprintf("Learning hub data migrated. %s records moved to the durable store.",
			formatNumberWithCommas(int64(migrated.Total()))),
		Attachments: []SlackAttachment{
			{
				Color: "#36a64f", // green
				Fields: []SlackField{
					{Title: "Account", Value: accountID, Short: true},
					{Title: "Terms", Value: formatNumberWithCommas(int64(migrated.Terms)), Short: true},
					{Title: "Bookmarks", Value: formatNumberWithCommas(int64(migrated.Bookmarks)), Short: true},
					{Title: "Paths", Value: formatNumberWithCommas(int64(migrated.Paths)), Short: true},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return n.send(msg)
}

// LearningMigrationFailed sends notification when a migration attempt fails
func (n *Notifier) LearningMigrationFailed(accountID string, err error) error {
	if !n.IsEnabled() {
		return nil
	}

	errMsg := "Unknown error"
	if err != nil {
		errMsg = err.Error()
		if len(errMsg) > 500 {
			errMsg = errMsg[:500] + "..."
		}
	}

	msg := SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: ":x:",
		Attachments: []SlackAttachment{
			{
				Color: "#dc3545", // red
				Title: "Learning Migration Failed",
				Text:  "Staged data was kept and the migration will retry on next sign-in.",
				Fields: []SlackField{
					{Title: "Account", Value: accountID, Short: true},
					{Title: "Error", Value: errMsg, Short: false},
				},
				Footer:    footer,
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return n.send(msg)
}

func (n *Notifier) send(msg SlackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	resp, err := n.httpClient.Post(n.config.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending to Slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack returned status %d", resp.StatusCode)
	}

	return nil
}

func (n *Notifier) getUsername() string {
	if n.config.Username != "" {
		return n.config.Username
	}
	return "propfolio"
}

func formatNumberWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result []byte
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
