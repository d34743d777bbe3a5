package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Discord embed colors per severity.
const (
	colorBlue   = 3447003
	colorGreen  = 3066993
	colorOrange = 15105570
	colorRed    = 15158332
)

// DiscordNotifier posts events as embeds to a Discord webhook.
type DiscordNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func severityColor(s Severity) int {
	switch s {
	case SeveritySuccess:
		return colorGreen
	case SeverityWarning:
		return colorOrange
	case SeverityCritical:
		return colorRed
	default:
		return colorBlue
	}
}

func (d *DiscordNotifier) Send(event Event) error {
	embed := discordEmbed{
		Title:       event.Title,
		Description: event.Message,
		Color:       severityColor(event.Severity),
	}
	for _, f := range event.Fields {
		embed.Fields = append(embed.Fields, discordField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	embed.Footer.Text = fmt.Sprintf("cycle-trader - %s", time.Now().UTC().Format("2006-01-02 15:04:05"))

	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	resp, err := d.Client.Post(d.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to discord webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook send failed: %s", resp.Status)
	}
	return nil
}
