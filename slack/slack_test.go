package slack_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"mealrecal/plan"
	"mealrecal/slack"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

type mockDoer struct {
	resp   *http.Response
	err    error
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return m.resp, m.err
}

func TestNewClient(t *testing.T) {
	webhook := "http://slack.com/webhook"
	client := slack.NewClient(webhook, &mockDoer{})
	must.NotNil(t, client, "expected non-nil client")
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name    string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr error
	}{
		{
			name: "success",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
			},
			wantErr: nil,
		},
		{
			name: "failure status",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request", Body: io.NopCloser(bytes.NewBufferString("bad request"))}, nil
			},
			wantErr: fmt.Errorf("failed to post message: 400 Bad Request"),
		},
		{
			name: "do error",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network error")
			},
			wantErr: fmt.Errorf("network error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: tt.doFunc})
			err := client.PostMessage(context.Background(), "#general", "Hello, world!")
			should.Equal(t, tt.wantErr, err)
		})
	}
}

var doc = plan.Document{
	UserID: "u1",
	Day:    "2026-10-17",
	Meals: map[plan.MealType]string{
		plan.Breakfast: "No breakfast logged",
		plan.Lunch:     "Recommended: Rajma with brown rice",
		plan.Dinner:    "Recommended: Palak tofu with roti",
		plan.Snack:     "You ate: chocolate chip cookies ✓ (400 cal)",
	},
	TotalCalories:     2000,
	RemainingCalories: 1600,
	ConsumedCalories:  400,
	Warnings:          []string{"Your snack was heavy (400 cal). Keep any further snacks light today."},
	Kind:              plan.KindAdaptive,
}

func TestFormatPlan(t *testing.T) {
	want := "*Meal plan updated* for `u1` on 2026-10-17 (adaptive_recalibrated)\n" +
		"Consumed 400 of 2000 cal, 1600 remaining\n" +
		"• *Breakfast*: No breakfast logged\n" +
		"• *Lunch*: Recommended: Rajma with brown rice\n" +
		"• *Dinner*: Recommended: Palak tofu with roti\n" +
		"• *Snack*: You ate: chocolate chip cookies ✓ (400 cal)\n" +
		":warning: Your snack was heavy (400 cal). Keep any further snacks light today."
	should.Equal(t, want, slack.FormatPlan(doc))
}

func TestPlanNotifier(t *testing.T) {
	var payload map[string]string
	client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		must.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
	}})

	err := slack.NewPlanNotifier(client, "#meal-plans").Notify(context.Background(), doc)
	must.NoError(t, err)
	should.Equal(t, "#meal-plans", payload["channel"])
	should.Equal(t, slack.FormatPlan(doc), payload["text"])
}
