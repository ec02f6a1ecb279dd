package aldes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// tokenResponse is the body of a successful credential exchange.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Authenticate exchanges the configured credentials for a fresh bearer
// token. The previous token value is discarded wholesale on success. It
// never retries internally; retry policy lives in the request layer.
func (c *Client) Authenticate(ctx context.Context) error {
	c.log.Infow("authenticating with Aldes API")

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build token request: %w", ErrAuthentication, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: token request: %w", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token endpoint returned status %d", ErrAuthentication, resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode token response: %w", ErrAuthentication, err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("%w: token response carries no access_token", ErrAuthentication)
	}

	c.setToken(body.AccessToken)
	c.log.Infow("authenticated with Aldes API")
	return nil
}

// setToken replaces the bearer token. Single writer: only Authenticate
// calls this.
func (c *Client) setToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

// bearer returns the Authorization header value for the current token.
func (c *Client) bearer() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return "Bearer " + c.token
}
