package vaba

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the wellness booking portal on behalf of one credential
// pair. It holds at most one session token at a time, obtains it lazily and
// re-logins once per operation when the portal rejects a cached token.
type Client struct {
	baseURL   string
	username  string
	password  string
	articleID string
	partySize int

	httpClient *http.Client
	logger     zerolog.Logger
	session    *session
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different portal endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithArticleID overrides the ticket article queried for availability
func WithArticleID(articleID string) Option {
	return func(c *Client) {
		c.articleID = articleID
	}
}

// WithPartySize sets the number of people per booking
func WithPartySize(partySize int) Option {
	return func(c *Client) {
		c.partySize = partySize
	}
}

// NewClient creates a new portal client for the given credentials. No
// network exchange happens here; authentication is performed lazily by the
// first operation that needs it.
func NewClient(username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	client := &Client{
		baseURL:   DefaultBaseURL,
		username:  username,
		password:  password,
		articleID: DefaultArticleID,
		partySize: DefaultPartySize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.session = newSession(client.loginExchange, logger)

	return client, nil
}

// doRequest performs one exchange against the portal endpoint. A non-nil
// form makes it a form-encoded POST body.
func (c *Client) doRequest(ctx context.Context, method string, query, form url.Values) (*http.Response, []byte, error) {
	requestURL := c.baseURL + "?" + query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, payload, nil
}

// loginExchange submits the credentials under a candidate session key. On
// success the key is the token; the portal hands nothing else back.
func (c *Client) loginExchange(ctx context.Context, key string) error {
	query, form := loginQuery(key, c.username, c.password)

	resp, body, err := c.doRequest(ctx, http.MethodPost, query, form)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return parseLoginResult(body)
}

// Login authenticates eagerly and caches the session token. Operations
// authenticate lazily on their own; this is useful as a connection check.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.session.Token(ctx)
	return err
}

// withAuthRetry runs an authenticated operation, re-authenticating and
// retrying exactly once when the portal rejects the session token. Any
// other failure propagates on first occurrence.
func (c *Client) withAuthRetry(ctx context.Context, op func(token string) error) error {
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}

	err = op(token)
	if !errors.Is(err, ErrNotAuthorized) {
		return err
	}

	c.logger.Debug().Msg("Session token rejected, retrying with a fresh login")
	c.session.Invalidate(token)

	token, err = c.session.Token(ctx)
	if err != nil {
		return err
	}

	return op(token)
}

// AvailableSlots queries the bookable times on the given calendar date.
// The endpoint is public; no session is involved. Fully booked times are
// filtered out and the portal's ordering is preserved.
func (c *Client) AvailableSlots(ctx context.Context, day time.Time) ([]Slot, error) {
	query, form := slotQuery(day, c.articleID, c.partySize)

	resp, body, err := c.doRequest(ctx, http.MethodPost, query, form)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	slots, err := parseSlots(day, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("date", day.Format(dateFormat)).
		Int("count", len(slots)).
		Msg("Retrieved available slots")

	return slots, nil
}

// ActiveReservations lists the user's current bookings, sorted ascending by
// timestamp.
func (c *Client) ActiveReservations(ctx context.Context) ([]Reservation, error) {
	var reservations []Reservation

	err := c.withAuthRetry(ctx, func(token string) error {
		resp, body, err := c.doRequest(ctx, http.MethodGet, reservationListQuery(token), nil)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		reservations, err = parseReservations(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("count", len(reservations)).
		Msg("Retrieved active reservations")

	return reservations, nil
}

// Reschedule moves an existing reservation to a new slot. The reservation
// keeps its id; only the timestamp changes. The portal answers this call
// with HTTP 500 when the session is invalid, so that status is treated as
// an authorization failure rather than a server fault.
func (c *Client) Reschedule(ctx context.Context, reservationID int, ts time.Time) error {
	err := c.withAuthRetry(ctx, func(token string) error {
		query, form := moveTicketQuery(token, reservationID, ts)

		resp, body, err := c.doRequest(ctx, http.MethodPost, query, form)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusInternalServerError {
			return ErrNotAuthorized
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		return parseMoveResult(body)
	})
	if err != nil {
		return err
	}

	c.logger.Info().
		Int("reservation_id", reservationID).
		Time("timestamp", ts).
		Msg("Reservation rescheduled")

	return nil
}
