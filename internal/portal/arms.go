package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/ashureev/slotwatch/internal/domain"
)

const (
	loginPath      = "/"
	enrollmentPath = "/StudentPortal/Enrollment.aspx"
	slotPath       = "/Handler/Student.ashx"

	loggedInMarker   = "Logout"
	enrollmentMarker = "Enrollment"

	defaultUserAgent = "Mozilla/5.0"
	maxBodySize      = 4 << 20
)

// hiddenFields are the ASP.NET form fields the login post must echo back.
var hiddenFields = []string{"__VIEWSTATE", "__VIEWSTATEGENERATOR", "__EVENTVALIDATION"}

// ARMSClient scrapes the ARMS student portal. Each check uses a fresh cookie
// jar so sessions never leak between chats.
type ARMSClient struct {
	baseURL   string
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
	slots     []domain.Slot
	logger    *slog.Logger
}

// Option configures an ARMSClient.
type Option func(*ARMSClient)

// WithTransport overrides the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *ARMSClient) {
		c.transport = rt
	}
}

// WithTimeout bounds every individual portal request.
func WithTimeout(d time.Duration) Option {
	return func(c *ARMSClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSlots overrides the slot set swept on every check.
func WithSlots(slots []domain.Slot) Option {
	return func(c *ARMSClient) {
		if len(slots) > 0 {
			c.slots = slots
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *ARMSClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewARMSClient creates a client for the portal rooted at baseURL.
func NewARMSClient(baseURL string, opts ...Option) (*ARMSClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("portal: base URL must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("portal: invalid base URL: %w", err)
	}

	c := &ARMSClient{
		baseURL:   baseURL,
		transport: http.DefaultTransport,
		timeout:   20 * time.Second,
		userAgent: defaultUserAgent,
		slots:     domain.DefaultSlots,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "portal")
	return c, nil
}

// CheckCourses logs in once, confirms the enrollment page, then queries every
// slot until all courses are found or the slots run out. A failure anywhere
// aborts the whole sweep; nothing is reported found from a partial sweep.
func (c *ARMSClient) CheckCourses(ctx context.Context, creds domain.Credentials, courses []string) (Report, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return Report{}, newError(KindNetwork, "create cookie jar", err)
	}
	hc := &http.Client{Transport: c.transport, Timeout: c.timeout, Jar: jar}

	if err := c.login(ctx, hc, creds); err != nil {
		return Report{}, err
	}

	body, err := c.get(ctx, hc, c.baseURL+enrollmentPath, OpLoadEnrollment)
	if err != nil {
		return Report{}, err
	}
	if !strings.Contains(body, enrollmentMarker) {
		return Report{}, newError(KindPageUnreachable, OpLoadEnrollment, errors.New("enrollment marker missing"))
	}

	pending := make(map[string]struct{}, len(courses))
	for _, code := range courses {
		pending[code] = struct{}{}
	}

	report := Report{Found: make(map[string]domain.Slot)}
	for _, slot := range c.slots {
		if len(pending) == 0 {
			break
		}

		body, err := c.get(ctx, hc, c.slotURL(slot), "query slot "+slot.Label)
		if err != nil {
			// Partial results are discarded; the next cycle repeats the sweep.
			return Report{}, err
		}

		for _, code := range courses {
			if _, ok := pending[code]; !ok {
				continue
			}
			if strings.Contains(body, code) {
				report.Found[code] = slot
				delete(pending, code)
				c.logger.Debug("Course found", "course", code, "slot", slot.Label)
			}
		}
	}

	return report, nil
}

func (c *ARMSClient) login(ctx context.Context, hc *http.Client, creds domain.Credentials) error {
	loginURL := c.baseURL + loginPath

	page, err := c.get(ctx, hc, loginURL, OpLoadLogin)
	if err != nil {
		return err
	}

	form, err := loginForm(page)
	if err != nil {
		return newError(KindPageUnreachable, OpLoadLogin, err)
	}
	form.Set("txtusername", creds.Username)
	form.Set("txtpassword", creds.Password)
	form.Set("btnlogin", "Login")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return newError(KindNetwork, OpSubmitLogin, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", loginURL)

	body, err := c.do(hc, req, OpSubmitLogin)
	if err != nil {
		return err
	}
	if !strings.Contains(body, loggedInMarker) {
		return newError(KindAuthRejected, OpSubmitLogin, nil)
	}
	return nil
}

// loginForm extracts the hidden ASP.NET state fields from the login page.
func loginForm(page string) (url.Values, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse login page: %w", err)
	}

	form := url.Values{}
	for _, name := range hiddenFields {
		sel := doc.Find(fmt.Sprintf(`input[name=%q]`, name))
		value, ok := sel.Attr("value")
		if sel.Length() == 0 || !ok {
			return nil, fmt.Errorf("login form field %s missing", name)
		}
		form.Set(name, value)
	}
	return form, nil
}

func (c *ARMSClient) slotURL(slot domain.Slot) string {
	q := url.Values{}
	q.Set("Page", "StudentInfobyId")
	q.Set("Mode", "GetCourseBySlot")
	q.Set("Id", slot.ID)
	return c.baseURL + slotPath + "?" + q.Encode()
}

func (c *ARMSClient) get(ctx context.Context, hc *http.Client, rawURL, op string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", newError(KindNetwork, op, err)
	}
	return c.do(hc, req, op)
}

func (c *ARMSClient) do(hc *http.Client, req *http.Request, op string) (string, error) {
	req.Header.Set("User-Agent", c.userAgent)

	res, err := hc.Do(req)
	if err != nil {
		return "", newError(KindNetwork, op, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 500 {
		return "", newError(KindNetwork, op, fmt.Errorf("unexpected status %d", res.StatusCode))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", newError(KindPageUnreachable, op, fmt.Errorf("unexpected status %d", res.StatusCode))
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return "", newError(KindNetwork, op, fmt.Errorf("read body: %w", err))
	}
	return string(buf), nil
}
