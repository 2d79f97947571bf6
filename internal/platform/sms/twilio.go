package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// Twilio error codes for undeliverable destinations. These are permanent;
// retrying the same number cannot succeed.
var twilioPermanentCodes = map[int]bool{
	21211: true, // invalid 'To' number
	21214: true, // 'To' number cannot receive SMS
	21408: true, // permission not enabled for region
	21610: true, // recipient has opted out
}

// TwilioGateway delivers SMS through the Twilio REST API.
type TwilioGateway struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func NewTwilioGateway(accountSID, authToken, from string) *TwilioGateway {
	return &TwilioGateway{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *TwilioGateway) Send(ctx context.Context, phone, body string) (string, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", g.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioBaseURL, g.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build twilio request: %w", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read twilio response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var ok struct {
			SID string `json:"sid"`
		}
		if err := json.Unmarshal(payload, &ok); err != nil {
			return "", fmt.Errorf("failed to parse twilio response: %w", err)
		}
		return ok.SID, nil
	}

	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &apiErr)

	if twilioPermanentCodes[apiErr.Code] {
		return "", &PermanentError{Reason: apiErr.Message}
	}

	return "", fmt.Errorf("twilio API error (HTTP %d, code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
}
