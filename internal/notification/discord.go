package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/properties"
)

const (
	colorRed    = 16711680
	colorGreen  = 65280
	colorYellow = 16776960
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Discord posts run notifications to webhooks. An empty URL disables that level.
type Discord struct {
	ErrorURL   string
	SuccessURL string
	WarnURL    string
	Client     *http.Client
}

func NewDiscord() *Discord {
	return &Discord{
		ErrorURL:   properties.DiscordErrorNotificationUrl(),
		SuccessURL: properties.DiscordSuccessNotificationUrl(),
		WarnURL:    properties.DiscordWarnNotificationUrl(),
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) Enabled() bool {
	return d.ErrorURL != "" || d.SuccessURL != "" || d.WarnURL != ""
}

func (d *Discord) SendError(ctx context.Context, message string) error {
	return d.send(ctx, d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Burn severity run failed",
		Description: message,
		Color:       colorRed,
	})
}

func (d *Discord) SendSuccess(ctx context.Context, message string) error {
	return d.send(ctx, d.SuccessURL, DiscordEmbed{
		Title:       "✅ Burn severity run finished",
		Description: message,
		Color:       colorGreen,
	})
}

func (d *Discord) SendWarning(ctx context.Context, message string) error {
	return d.send(ctx, d.WarnURL, DiscordEmbed{
		Title:       "⚠️ Burn severity run finished with failures",
		Description: message,
		Color:       colorYellow,
	})
}

// NotifyRun reports a run summary: success when every period was tagged, warning
// when some failed and error when none succeeded.
func (d *Discord) NotifyRun(ctx context.Context, summary pipeline.Summary, exported int) error {
	message := DescribeRun(summary, exported)
	failed := len(summary.Failed())
	switch {
	case failed == 0:
		return d.SendSuccess(ctx, message)
	case failed == len(summary.Periods):
		return d.SendError(ctx, message)
	default:
		return d.SendWarning(ctx, message)
	}
}

func DescribeRun(summary pipeline.Summary, exported int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n%d/%d periods tagged, %d exports\n", summary.RunID, summary.Tagged(), len(summary.Periods), exported)
	for _, p := range summary.Periods {
		if p.State == pipeline.Failed {
			fmt.Fprintf(&b, "\n- %s failed in %s: %v", p.Period, p.FailedIn, p.Err)
			continue
		}
		fmt.Fprintf(&b, "\n- %s tagged %d rasters in %s", p.Period, p.Rasters, p.Duration.Round(time.Millisecond))
	}
	return b.String()
}

func (d *Discord) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}
