package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/models"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorRed    = 16711680 // #FF0000 - Alert escalated
	ColorGreen  = 65280    // #00FF00 - Attention closed
	ColorOrange = 16753920 // #FFA500 - Warning

	Username = "Fleetwatch"
)

// SendAlertEscalatedNotification posts an escalation summary to the
// company's configured ops webhooks. Best-effort; callers fire and forget.
func SendAlertEscalatedNotification(company models.Company, alert models.Alert, level int) error {
	if company.DiscordWebhook != "" {
		if err := sendDiscordEscalated(company.DiscordWebhook, company, alert, level); err != nil {
			return fmt.Errorf("discord: %w", err)
		}
	}

	if company.SlackWebhook != "" {
		if err := sendSlackEscalated(company.SlackWebhook, company, alert, level); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}

	return nil
}

// SendAttentionClosedNotification posts a closure summary to the company's
// configured ops webhooks.
func SendAttentionClosedNotification(company models.Company, alert models.Alert, reason string) error {
	if company.DiscordWebhook != "" {
		if err := sendDiscordClosed(company.DiscordWebhook, company, alert, reason); err != nil {
			return fmt.Errorf("discord: %w", err)
		}
	}

	if company.SlackWebhook != "" {
		if err := sendSlackClosed(company.SlackWebhook, company, alert, reason); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}

	return nil
}

func sendDiscordEscalated(webhookURL string, company models.Company, alert models.Alert, level int) error {
	ackDue := "Unknown"
	if alert.AckDueAt != nil {
		ackDue = alert.AckDueAt.Format("2006-01-02 15:04:05 UTC")
	}

	payload := DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "ALERT ESCALATED",
				Description: fmt.Sprintf("Alert #%d breached its SLA deadline and was escalated.", alert.ID),
				Color:       ColorRed,
				Fields: []DiscordWebhookField{
					{Name: "Alert", Value: alert.Title, Inline: false},
					{Name: "Severity", Value: alert.Severity, Inline: true},
					{Name: "Risk", Value: alert.RiskEscalation, Inline: true},
					{Name: "Escalation Level", Value: fmt.Sprintf("%d", level), Inline: true},
					{Name: "Next Ack Deadline", Value: ackDue, Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("Company: %s | Fleetwatch", company.Name),
				},
				Timestamp: time.Now().Format(time.RFC3339),
			},
		},
	}

	return sendDiscordWebhook(webhookURL, payload)
}

func sendDiscordClosed(webhookURL string, company models.Company, alert models.Alert, reason string) error {
	resolvedAt := "Unknown"
	if alert.ResolvedAt != nil {
		resolvedAt = alert.ResolvedAt.Format("2006-01-02 15:04:05 UTC")
	}

	payload := DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "ATTENTION CLOSED",
				Description: fmt.Sprintf("Alert #%d is no longer under attention tracking.", alert.ID),
				Color:       ColorGreen,
				Fields: []DiscordWebhookField{
					{Name: "Alert", Value: alert.Title, Inline: false},
					{Name: "Severity", Value: alert.Severity, Inline: true},
					{Name: "Reason", Value: reason, Inline: false},
					{Name: "Resolved At", Value: resolvedAt, Inline: true},
					{Name: "Escalations", Value: fmt.Sprintf("%d", alert.EscalationCount), Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("Company: %s | Fleetwatch", company.Name),
				},
				Timestamp: time.Now().Format(time.RFC3339),
			},
		},
	}

	return sendDiscordWebhook(webhookURL, payload)
}

func sendSlackEscalated(webhookURL string, company models.Company, alert models.Alert, level int) error {
	ackDue := "Unknown"
	if alert.AckDueAt != nil {
		ackDue = alert.AckDueAt.Format("2006-01-02 15:04:05 UTC")
	}

	payload := SlackWebhookRequest{
		Username:  Username,
		IconEmoji: ":rotating_light:",
		Text:      ":rotating_light: *ALERT ESCALATED*",
		Attachments: []SlackAttachment{
			{
				Color: "danger",
				Title: fmt.Sprintf("Alert #%d breached its SLA deadline", alert.ID),
				Text:  alert.Title,
				Fields: []SlackField{
					{Title: "Severity", Value: alert.Severity, Short: true},
					{Title: "Risk", Value: alert.RiskEscalation, Short: true},
					{Title: "Escalation Level", Value: fmt.Sprintf("%d", level), Short: true},
					{Title: "Next Ack Deadline", Value: ackDue, Short: true},
				},
				Footer:    fmt.Sprintf("Company: %s", company.Name),
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return sendSlackWebhook(webhookURL, payload)
}

func sendSlackClosed(webhookURL string, company models.Company, alert models.Alert, reason string) error {
	resolvedAt := "Unknown"
	if alert.ResolvedAt != nil {
		resolvedAt = alert.ResolvedAt.Format("2006-01-02 15:04:05 UTC")
	}

	payload := SlackWebhookRequest{
		Username:  Username,
		IconEmoji: ":white_check_mark:",
		Text:      ":white_check_mark: *ATTENTION CLOSED*",
		Attachments: []SlackAttachment{
			{
				Color: "good",
				Title: fmt.Sprintf("Alert #%d closed", alert.ID),
				Text:  alert.Title,
				Fields: []SlackField{
					{Title: "Severity", Value: alert.Severity, Short: true},
					{Title: "Escalations", Value: fmt.Sprintf("%d", alert.EscalationCount), Short: true},
					{Title: "Reason", Value: reason, Short: false},
					{Title: "Resolved At", Value: resolvedAt, Short: true},
				},
				Footer:    fmt.Sprintf("Company: %s", company.Name),
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return sendSlackWebhook(webhookURL, payload)
}

func sendDiscordWebhook(webhookURL string, payload DiscordWebhookRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	resp, err := http.Post(webhookURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func sendSlackWebhook(webhookURL string, payload SlackWebhookRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	resp, err := http.Post(webhookURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to send Slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}
