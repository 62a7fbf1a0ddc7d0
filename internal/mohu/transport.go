package mohu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/njoerd114/mohucal/internal/fragment"
)

const (
	// DefaultBaseURL is the public waste calendar page.
	DefaultBaseURL = "https://mohubudapest.hu/hulladeknaptar"

	// DefaultTimeout bounds every single request of a session.
	DefaultTimeout = 15 * time.Second

	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 4 << 20

	userAgent = "mohucal/1.0 (+https://github.com/njoerd114/mohucal)"
)

// PartialRequest is one AJAX call against the page's October CMS handlers.
// The response is a JSON object keyed by partial name; only Partial is
// returned to the caller.
type PartialRequest struct {
	Handler string
	Partial string
	Form    url.Values
}

// Session is a cookie-scoped conversation with the site. It is owned by a
// single cascade and must be closed by it.
type Session interface {
	// Page returns the landing page loaded when the session was opened.
	Page() string
	// Partial posts req and returns the HTML of the requested partial.
	Partial(ctx context.Context, req PartialRequest) (string, error)
	// Close releases the session's connections and cookies.
	Close()
}

// Transport opens sessions. Every call to Open yields an independent cookie
// jar so concurrent cascades cannot see each other's state.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}

// HTTPTransport is the [Transport] backed by net/http.
type HTTPTransport struct {
	baseURL string
	timeout time.Duration
	rt      http.RoundTripper
	log     *slog.Logger
}

// NewHTTPTransport creates a transport for baseURL. A zero timeout means
// [DefaultTimeout]; a nil round tripper means [http.DefaultTransport].
func NewHTTPTransport(baseURL string, timeout time.Duration, rt http.RoundTripper, logger *slog.Logger) (*HTTPTransport, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.ParseRequestURI(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("base URL %q must be a valid http or https URL", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &HTTPTransport{baseURL: baseURL, timeout: timeout, rt: rt, log: logger}, nil
}

// Open creates a fresh cookie jar and loads the landing page, which both
// starts the server-side session and carries the district list.
func (t *HTTPTransport) Open(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	s := &httpSession{
		baseURL: t.baseURL,
		origin:  originOf(t.baseURL),
		client: &http.Client{
			Jar:       jar,
			Timeout:   t.timeout,
			Transport: t.rt,
		},
		log: t.log,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create landing request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	body, err := s.do(req, "load landing page")
	if err != nil {
		s.Close()
		return nil, err
	}
	s.page = body
	return s, nil
}

type httpSession struct {
	baseURL string
	origin  string
	client  *http.Client
	page    string
	closed  bool
	log     *slog.Logger
}

func (s *httpSession) Page() string { return s.page }

func (s *httpSession) Partial(ctx context.Context, pr PartialRequest) (string, error) {
	op := "AJAX " + pr.Handler
	if s.closed {
		return "", &TransportError{Op: op, Err: errors.New("session closed")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(pr.Form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", pr.Handler, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-OCTOBER-REQUEST-HANDLER", pr.Handler)
	req.Header.Set("X-OCTOBER-REQUEST-PARTIALS", pr.Partial)
	req.Header.Set("Referer", s.baseURL)
	if s.origin != "" {
		req.Header.Set("Origin", s.origin)
	}

	s.log.Debug("posting AJAX handler", "handler", pr.Handler, "partial", pr.Partial)
	body, err := s.do(req, op)
	if err != nil {
		return "", err
	}

	var partials map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &partials); err != nil {
		return "", &fragment.MalformedFragmentError{Reason: op + " response is not JSON", Err: err}
	}
	raw, ok := partials[pr.Partial]
	if !ok {
		return "", &fragment.MalformedFragmentError{Reason: fmt.Sprintf("%s response has no partial %q", op, pr.Partial)}
	}
	var html string
	if err := json.Unmarshal(raw, &html); err != nil {
		return "", &fragment.MalformedFragmentError{Reason: fmt.Sprintf("partial %q is not a string", pr.Partial), Err: err}
	}
	return html, nil
}

func (s *httpSession) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.client.CloseIdleConnections()
}

// do executes req and returns the body for 2xx responses.
func (s *httpSession) do(req *http.Request, op string) (string, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &TransportError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}
	return string(b), nil
}

// originOf returns scheme://host of rawURL, or "" if it cannot be parsed.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
