// Package parsing is the boundary to the external text-extraction service.
// It turns free-form email bodies and pasted operator lists into structured
// records. All failures are ExternalService errors: the caller may retry the
// same input safely.
package parsing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/jafarov01/property-management-bot/internal/failure"
)

// EmailResult is the structured extraction of one inbound booking email.
type EmailResult struct {
	Category          string `json:"category"`
	Summary           string `json:"summary"`
	GuestName         string `json:"guest_name"`
	PropertyCode      string `json:"property_code"`
	Platform          string `json:"platform"`
	ReservationNumber string `json:"reservation_number"`
	Deadline          string `json:"deadline"`
}

// CheckinEntry is one row of a daily check-in list.
type CheckinEntry struct {
	PropertyCode string `json:"property_code"`
	GuestName    string `json:"guest_name"`
	Platform     string `json:"platform"`
	DuePayment   string `json:"due_payment"`
}

// Service extracts structured data from raw operator and mailbox text.
type Service interface {
	ParseBookingEmail(ctx context.Context, raw string) (*EmailResult, error)
	ParseCheckinList(ctx context.Context, raw string, date time.Time) ([]CheckinEntry, error)
	ParseCleaningList(ctx context.Context, raw string) ([]string, error)
}

// Client is the HTTP JSON implementation of Service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a parsing client against baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type parseRequest struct {
	Kind string `json:"kind"`
	Raw  string `json:"raw"`
	Date string `json:"date,omitempty"`
}

func (c *Client) ParseBookingEmail(ctx context.Context, raw string) (*EmailResult, error) {
	var result EmailResult
	if err := c.post(ctx, parseRequest{Kind: "booking_email", Raw: raw}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ParseCheckinList(ctx context.Context, raw string, date time.Time) ([]CheckinEntry, error) {
	var entries []CheckinEntry
	req := parseRequest{Kind: "checkin_list", Raw: raw, Date: date.Format("2006-01-02")}
	if err := c.post(ctx, req, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) ParseCleaningList(ctx context.Context, raw string) ([]string, error) {
	var codes []string
	if err := c.post(ctx, parseRequest{Kind: "cleaning_list", Raw: raw}, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (c *Client) post(ctx context.Context, reqBody parseRequest, out interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return failure.ExternalServicef(errors.Wrap(err, "failed to marshal parse request"), "parsing service unavailable")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", bytes.NewReader(payload))
	if err != nil {
		return failure.ExternalServicef(errors.Wrap(err, "failed to build parse request"), "parsing service unavailable")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure.ExternalServicef(errors.Wrap(err, "parse request failed"), "parsing service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("parsing service returned status %d", resp.StatusCode)
		return failure.ExternalServicef(err, "parsing service rejected %s input", reqBody.Kind)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return failure.ExternalServicef(errors.Wrap(err, "failed to decode parse response"), "parsing service returned malformed output")
	}
	return nil
}

var _ Service = (*Client)(nil)
