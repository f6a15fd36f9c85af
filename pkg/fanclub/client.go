package fanclub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"
	"fcsync/pkg/retry"

	"github.com/PuerkitoBio/goquery"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_16_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.97 Safari/537.36"

// Options configures a Client
type Options struct {
	BaseURL   string
	SessionID string
	UserAgent string
	Timeout   time.Duration
	// Retry applies to metadata, feed and directory requests only
	Retry  *retry.Config
	Logger logger.Logger
}

// Client is the single authenticated session shared by every component of
// a run. It is not safe for concurrent use.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a session client carrying the session cookie
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
		opts.Retry.Logger = opts.Logger
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.SessionID != "" {
		jar.SetCookies(base, []*http.Cookie{{
			Name:  SessionCookie,
			Value: opts.SessionID,
			Path:  "/",
		}})
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept-Language": "ja,en-US;q=0.9,en;q=0.8",
		},
		baseURL: opts.BaseURL,
		retry:   opts.Retry,
		logger:  opts.Logger,
	}, nil
}

// BaseURL returns the service root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHeader sets a header sent with every subsequent request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method": method,
			"url":    rawURL,
			"error":  err.Error(),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "%s %s", method, rawURL)
	}

	logger.LogRequest(c.logger, method, rawURL, resp.StatusCode, elapsed)
	return resp, nil
}

// checkResponseStatus maps a response onto the error taxonomy. Pages served
// from a sign-in location count as an expired session.
func checkResponseStatus(resp *http.Response) error {
	if redirectedToSignIn(resp) {
		return errs.SignInRedirect(resp.StatusCode)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errs.AuthExpired(resp.StatusCode, "session rejected")
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

func redirectedToSignIn(resp *http.Response) bool {
	return resp.Request != nil && resp.Request.URL != nil && isLoginPath(resp.Request.URL.Path)
}

// checkContentStatus is checkResponseStatus for content files. CDNs answer
// 401 and 403 for single objects, so only a sign-in redirect is an expired
// session and every other failure belongs to that one file.
func checkContentStatus(resp *http.Response) error {
	if redirectedToSignIn(resp) {
		return errs.SignInRedirect(resp.StatusCode)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return errs.Download(resp.StatusCode, nil, "unexpected status code: %d", resp.StatusCode)
}

// getBody performs a retried GET and returns the whole body
func (c *Client) getBody(ctx context.Context, rawURL string) ([]byte, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		resp, err := c.do(ctx, http.MethodGet, rawURL)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := checkResponseStatus(resp); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "read response body of %s", rawURL)
		}
		return body, nil
	}, c.retry)
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	body, err := c.getBody(ctx, rawURL)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "decode %s", rawURL)
	}
	return nil
}

// GetDocument performs a GET request and parses the HTML response
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.getBody(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "parse %s", rawURL)
	}
	return doc, nil
}

// Head sends a HEAD request for rawURL and returns its media type without parameters
func (c *Client) Head(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkContentStatus(resp); err != nil {
		return "", err
	}
	return MediaType(resp.Header.Get("Content-Type")), nil
}

// Open starts a body download. The caller closes the returned reader.
// Content bodies are never retried.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	if err := checkContentStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// CheckSession verifies that the session cookie is still accepted. Only 401,
// 403 and a sign-in redirect mean the session expired; an outage keeps its
// own type.
func (c *Client) CheckSession(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, MeURL(c.baseURL))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkResponseStatus(resp)
}

// FetchChannel fetches fresh channel metadata including the joined plan price
func (c *Client) FetchChannel(ctx context.Context, channelID int64) (*models.Channel, error) {
	var resp channelResponse
	if err := c.GetJSON(ctx, ChannelURL(c.baseURL, channelID), &resp); err != nil {
		return nil, err
	}

	channel := resp.Fanclub.toChannel()
	if channel.ID == 0 {
		channel.ID = channelID
	}

	c.logger.DebugWithFields("channel metadata fetched", map[string]interface{}{
		"channel_id": channel.ID,
		"price":      channel.Price,
	})
	return &channel, nil
}

// FetchPost fetches the detail of one post. File block URLs are resolved
// against the base URL, and later downloads carry the post as referer.
func (c *Client) FetchPost(ctx context.Context, postID int64) (*models.Post, error) {
	postURL := PostURL(c.baseURL, postID)

	var resp postResponse
	if err := c.GetJSON(ctx, postURL, &resp); err != nil {
		return nil, err
	}
	c.SetHeader("Referer", postURL)

	post := resp.Post.toPost(c.baseURL)
	if post.ID == 0 {
		post.ID = postID
	}
	return &post, nil
}

// MediaType strips parameters from a Content-Type value
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.Index(contentType, ";"); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
