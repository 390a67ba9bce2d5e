package catalog

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials is the four-value OAuth 1.0a credential set the provider
// issues: an application pair plus an access-token pair.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

func (c Credentials) Validate() error {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" || c.Token == "" || c.TokenSecret == "" {
		return errors.New("all four OAuth credentials must be provided")
	}
	return nil
}

// Low-level failure classes. The Bricklink service converts these into the
// public taxonomy in errors.go; they never escape this package.

// transportError: connection failure or timeout. Retryable.
type transportError struct {
	cause   error
	timeout bool
}

func (e *transportError) Error() string { return "transport: " + e.cause.Error() }
func (e *transportError) Unwrap() error { return e.cause }

// statusError: non-2xx HTTP status. Retryable for 429 and 5xx.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return "unexpected status " + strconv.Itoa(e.code) }

// badResponseError: 2xx with a body we cannot decode. Not retryable.
type badResponseError struct {
	cause error
}

func (e *badResponseError) Error() string { return "malformed response body: " + e.cause.Error() }
func (e *badResponseError) Unwrap() error { return e.cause }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return false
}

// OAuthClient performs signed GETs against an OAuth 1.0a provider.
// Credentials are fixed per instance; one long-lived client is shared across
// requests and reuses its underlying connections.
type OAuthClient struct {
	creds Credentials
	http  *http.Client

	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	// Injection points so tests run without wall-clock sleeps and with
	// reproducible signatures.
	sleep func(time.Duration)
	nonce func() string
	now   func() time.Time
}

func NewOAuthClient(creds Credentials, timeout time.Duration) (*OAuthClient, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OAuthClient{
		creds:       creds,
		http:        &http.Client{Timeout: timeout},
		maxAttempts: 3,
		backoffBase: 2 * time.Second,
		backoffCap:  10 * time.Second,
		sleep:       time.Sleep,
		nonce:       func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		now:         time.Now,
	}, nil
}

// Get performs a signed GET and decodes the JSON body into out.
// Retries up to 3 attempts with exponential backoff (2s, 4s, capped at 10s)
// on connection/timeout failures, 429 and 5xx; everything else fails on the
// first attempt. Error text never contains credentials or provider payloads.
func (c *OAuthClient) Get(ctx context.Context, rawURL string, params url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("refusing non-HTTPS catalog url %s", u.Scheme)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(c.backoff(attempt - 1))
		}
		lastErr = c.do(ctx, u, params, out)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoff returns the delay before retry n (1-based): base*2^(n-1), capped.
func (c *OAuthClient) backoff(n int) time.Duration {
	d := c.backoffBase << (n - 1)
	if d > c.backoffCap {
		d = c.backoffCap
	}
	return d
}

func (c *OAuthClient) do(ctx context.Context, u *url.URL, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Authorization", c.authHeader(http.MethodGet, u, params))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var ne net.Error
		timeout := errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded)
		return &transportError{cause: err, timeout: timeout}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &transportError{cause: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &badResponseError{cause: err}
	}
	return nil
}

// authHeader builds the OAuth 1.0a HMAC-SHA1 Authorization header.
// Deterministic given credentials, URL, params, nonce and timestamp.
func (c *OAuthClient) authHeader(method string, u *url.URL, params url.Values) string {
	oauth := map[string]string{
		"oauth_consumer_key":     c.creds.ConsumerKey,
		"oauth_nonce":            c.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.now().Unix(), 10),
		"oauth_token":            c.creds.Token,
		"oauth_version":          "1.0",
	}

	// Signature base string: method & base URL & sorted encoded params
	// (query params and oauth params together).
	all := make([][2]string, 0, len(params)+len(oauth))
	for k, vs := range params {
		for _, v := range vs {
			all = append(all, [2]string{percentEncode(k), percentEncode(v)})
		}
	}
	for k, v := range oauth {
		all = append(all, [2]string{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i][0] != all[j][0] {
			return all[i][0] < all[j][0]
		}
		return all[i][1] < all[j][1]
	})
	pairs := make([]string, len(all))
	for i, kv := range all {
		pairs[i] = kv[0] + "=" + kv[1]
	}

	baseURL := u.Scheme + "://" + u.Host + u.EscapedPath()
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(pairs, "&"))
	key := percentEncode(c.creds.ConsumerSecret) + "&" + percentEncode(c.creds.TokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	hdr := make([]string, len(keys))
	for i, k := range keys {
		hdr[i] = percentEncode(k) + `="` + percentEncode(oauth[k]) + `"`
	}
	return "OAuth " + strings.Join(hdr, ", ")
}

// percentEncode implements RFC 3986 encoding as OAuth 1.0a requires
// (unreserved characters only; space is %20, never +).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case 'A' <= ch && ch <= 'Z', 'a' <= ch && ch <= 'z', '0' <= ch && ch <= '9',
			ch == '-', ch == '.', ch == '_', ch == '~':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
