package sharekhan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/manish3089/Token-Generator/internal/timeseries"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Session is an authenticated historical-data session. It is returned by
// Login and must be passed to every call that needs the bearer token.
type Session struct {
	token    string
	userID   string
	loggedIn time.Time
	closed   bool
}

// Valid reports whether the session can still be used
func (s *Session) Valid() bool {
	return s != nil && !s.closed && s.token != ""
}

// UserID returns the user the session belongs to
func (s *Session) UserID() string {
	return s.userID
}

// HistoricalRequest selects a bar series. Empty From/To fall back to the
// last Days days ending now.
type HistoricalRequest struct {
	Exchange string
	Symbol   string
	Interval string
	From     string
	To       string
	Days     int
}

// DateRange resolves the request's fromDate/toDate query values
func (r HistoricalRequest) DateRange(now time.Time) (string, string) {
	if r.From != "" && r.To != "" {
		return r.From, r.To
	}
	days := r.Days
	if days <= 0 {
		days = 30
	}
	return now.AddDate(0, 0, -days).Format(dateLayout), now.Format(dateLayout)
}

type loginRequest struct {
	UserID    string `json:"userId"`
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
}

type loginData struct {
	AuthToken string `json:"authToken"`
}

// Login authenticates with the user/API/secret triple from the config
func (c *Client) Login(ctx context.Context) (*Session, error) {
	req, err := c.createRequest(ctx, http.MethodPost, c.endpoint(authLoginPath), loginRequest{
		UserID:    c.config.UserID,
		APIKey:    c.config.APIKey,
		SecretKey: c.config.SecretKey,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do("login", req)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.Status != statusSuccess {
		return nil, env.failure("login failed")
	}

	var data loginData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode login data: %w", err)
		}
	}
	if data.AuthToken == "" {
		return nil, fmt.Errorf("login failed: response carried no auth token")
	}

	c.logger.WithField("user_id", c.config.UserID).Info("Login successful")

	return &Session{
		token:    data.AuthToken,
		userID:   c.config.UserID,
		loggedIn: time.Now(),
	}, nil
}

// FetchHistoricalBars returns the raw rows for req. A nil or logged-out
// session yields ErrSequence without contacting the broker.
func (c *Client) FetchHistoricalBars(ctx context.Context, sess *Session, req HistoricalRequest) ([]timeseries.RawRow, error) {
	if !sess.Valid() {
		return nil, ErrSequence
	}

	from, to := req.DateRange(time.Now())
	q := url.Values{}
	q.Set("fromDate", from)
	q.Set("toDate", to)

	endpoint := fmt.Sprintf("%s/%s/%s/%s?%s",
		c.endpoint(historicalPath),
		url.PathEscape(req.Exchange),
		url.PathEscape(req.Symbol),
		url.PathEscape(req.Interval),
		q.Encode(),
	)

	log := c.logger.WithFields(logrus.Fields{
		"exchange": req.Exchange,
		"symbol":   req.Symbol,
		"interval": req.Interval,
		"from":     from,
		"to":       to,
	})
	log.Debug("Fetching historical data")

	httpReq, err := c.createRequest(ctx, http.MethodGet, endpoint, nil, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do("historical", httpReq)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.Status != statusSuccess {
		return nil, env.failure("historical data")
	}

	var rows []timeseries.RawRow
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to decode historical rows: %w", err)
		}
	}

	log.WithField("count", len(rows)).Info("Fetched historical data")
	return rows, nil
}

// Logout invalidates the session on a best-effort basis. Failures are logged
// and never returned; the session is closed locally either way.
func (c *Client) Logout(ctx context.Context, sess *Session) {
	if !sess.Valid() {
		return
	}
	defer func() {
		sess.closed = true
		sess.token = ""
	}()

	req, err := c.createRequest(ctx, http.MethodPost, c.endpoint(authLogoutPath), nil, sess)
	if err != nil {
		c.logger.WithError(err).Warn("Logout request could not be built (continuing anyway)")
		return
	}

	if _, err := c.do("logout", req); err != nil {
		c.logger.WithError(err).Warn("Logout request failed (continuing anyway)")
		return
	}

	c.logger.WithField("session_age", time.Since(sess.loggedIn).Round(time.Second)).Info("Logged out successfully")
}

// ScripCodes lists the GOLDM contract codes by expiry
func ScripCodes() map[string]string {
	return map[string]string{
		"GOLDM_CURRENT": "GOLDM",
		"GOLDM_NEXT":    "GOLDM1",
		"GOLDM_FAR":     "GOLDM2",
	}
}
