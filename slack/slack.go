package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mealrecal"
	"mealrecal/plan"
)

type Client struct {
	webhookURL string
	httpClient mealrecal.HTTPClient
}

func NewClient(webhookURL string, httpClient mealrecal.HTTPClient) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PlanNotifier posts every updated plan to a channel.
type PlanNotifier struct {
	client  mealrecal.SlackClient
	channel string
}

func NewPlanNotifier(client mealrecal.SlackClient, channel string) *PlanNotifier {
	return &PlanNotifier{client: client, channel: channel}
}

func (n *PlanNotifier) Notify(ctx context.Context, doc plan.Document) error {
	return n.client.PostMessage(ctx, n.channel, FormatPlan(doc))
}

// FormatPlan renders a plan as Slack mrkdwn.
func FormatPlan(doc plan.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Meal plan updated* for `%s` on %s (%s)\n", doc.UserID, doc.Day, doc.Kind)
	fmt.Fprintf(&b, "Consumed %.0f of %.0f cal, %.0f remaining\n", doc.ConsumedCalories, doc.TotalCalories, doc.RemainingCalories)
	for _, mt := range plan.MealTypes {
		fmt.Fprintf(&b, "• *%s*: %s\n", mt.Title(), doc.Meals[mt])
	}
	for _, w := range doc.Warnings {
		fmt.Fprintf(&b, ":warning: %s\n", w)
	}
	return strings.TrimRight(b.String(), "\n")
}
