package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vipul43/kiwis-outreach/internal/service"
)

const (
	tokenURL  = "https://oauth2.googleapis.com/token"
	revokeURL = "https://oauth2.googleapis.com/revoke"
)

type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// newService creates a Gmail service authorized with a fixed access token
func (c *Client) newService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}

	gmailService, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return gmailService, nil
}

// SendMessage sends one HTML message from the authorized mailbox and returns
// the Gmail message ID
func (c *Client) SendMessage(ctx context.Context, accessToken string, msg service.OutgoingMessage) (string, error) {
	raw, err := buildRawMessage(msg, c.now())
	if err != nil {
		return "", &service.DeliveryError{Permanent: true, Err: err}
	}

	gmailService, err := c.newService(ctx, accessToken)
	if err != nil {
		return "", &service.DeliveryError{Err: err}
	}

	sent, err := gmailService.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", classifySendError(err)
	}

	return sent.Id, nil
}

// GetProfile returns the address and message count of the authorized mailbox
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*service.MailboxProfile, error) {
	gmailService, err := c.newService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	profile, err := gmailService.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", classifySendError(err))
	}

	return &service.MailboxProfile{
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
	}, nil
}

// RefreshAccessToken refreshes the OAuth2 access token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*service.TokenRefreshResult, error) {
	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: tokenURL,
		},
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	// Refresh the token
	tokenSource := config.TokenSource(ctx, token)
	newToken, err := tokenSource.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, fmt.Errorf("failed to refresh token (%s): %w", retrieveErr.ErrorCode, err)
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	result := &service.TokenRefreshResult{
		AccessToken: newToken.AccessToken,
		ExpiresAt:   newToken.Expiry,
	}

	// The token source copies the old refresh token forward when the
	// response omits one; only report a real rotation
	if newToken.RefreshToken != "" && newToken.RefreshToken != refreshToken {
		result.RefreshToken = newToken.RefreshToken
	}

	log.Printf("Token refreshed successfully, expires at: %s", result.ExpiresAt)

	return result, nil
}

// RevokeToken revokes an access or refresh token at Google. A token Google
// no longer recognizes counts as revoked.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "invalid_token") {
		return nil
	}
	return fmt.Errorf("revoke failed (status %d): %s", resp.StatusCode, string(body))
}

// classifySendError maps Gmail API failures onto the delivery error types.
// Classification is by HTTP status and structured reason, never message text.
func classifySendError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &service.AuthError{Reason: "provider rejected credential", Err: err}
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return &service.DeliveryError{Err: err}
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized:
		return &service.AuthError{Reason: "provider rejected access token", Err: err}
	case apiErr.Code == http.StatusForbidden && hasReason(apiErr, "insufficientPermissions", "forbidden"):
		return &service.AuthError{Reason: "credential lacks send permission", Err: err}
	case apiErr.Code == http.StatusTooManyRequests,
		apiErr.Code == http.StatusForbidden && hasReason(apiErr, "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded", "quotaExceeded"):
		return &service.DeliveryError{StatusCode: apiErr.Code, Throttled: true, Err: err}
	case apiErr.Code == http.StatusBadRequest && hasReason(apiErr, "failedPrecondition"):
		// The mailbox itself cannot send (e.g. Gmail disabled); every contact would fail
		return &service.AuthError{Reason: "mailbox is not able to send mail", Err: err}
	case apiErr.Code >= 500:
		return &service.DeliveryError{StatusCode: apiErr.Code, Err: err}
	case apiErr.Code >= 400 && apiErr.Code != http.StatusForbidden:
		return &service.DeliveryError{StatusCode: apiErr.Code, Permanent: true, Err: err}
	default:
		return &service.DeliveryError{StatusCode: apiErr.Code, Err: err}
	}
}

func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, item := range apiErr.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	return false
}
