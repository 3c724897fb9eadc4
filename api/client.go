// Package api is a thin client for the wiki's action API: rendered-HTML
// fetches, user options (where the visit log and seen set live), page
// existence checks, and option saves. It classifies failures as
// transport vs wiki rejection and never retries on its own.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OptionSizeLimit is the wiki's ceiling for a single user-option value.
const OptionSizeLimit = 65535

// VisitsOptionName is the user option holding the packed visit log.
const VisitsOptionName = "userjs-talkpage-visits"

// SeenOptionName is the user option holding the seen-comment set.
const SeenOptionName = "userjs-talkpage-seen"

const defaultUserAgent = "talkpage (https://github.com/jwbth/talkpage)"

// Client talks to one wiki's api.php endpoint.
type Client struct {
	endpoint  string
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	latest    latest
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the given api.php endpoint, e.g.
// "https://en.wikipedia.org/w/api.php".
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:  strings.TrimRight(endpoint, "?"),
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    slog.Default(),
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiError is the error member of an action API response.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// ParsedPage is the rendered form of one page revision.
type ParsedPage struct {
	Title  string
	PageID int64
	RevID  int64
	HTML   string
}

type parseResponse struct {
	Error *apiError `json:"error"`
	Parse struct {
		Title  string `json:"title"`
		PageID int64  `json:"pageid"`
		RevID  int64  `json:"revid"`
		Text   string `json:"text"`
	} `json:"parse"`
}

// FetchParse fetches the rendered HTML of a page. A stale response for
// the same title (a newer FetchParse was issued meanwhile) is discarded
// with ErrSuperseded.
func (c *Client) FetchParse(ctx context.Context, title string) (*ParsedPage, error) {
	tok := c.latest.begin("parse:" + title)

	params := url.Values{
		"action":        {"parse"},
		"page":          {title},
		"prop":          {"text|revid"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	var resp parseResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &APIError{Code: resp.Error.Code, Info: resp.Error.Info}
	}
	if !tok.current() {
		return nil, ErrSuperseded
	}
	return &ParsedPage{
		Title:  resp.Parse.Title,
		PageID: resp.Parse.PageID,
		RevID:  resp.Parse.RevID,
		HTML:   resp.Parse.Text,
	}, nil
}

// UserInfo is the viewer's identity plus the persisted talk-page state
// carried in user options.
type UserInfo struct {
	ID              int64
	Name            string
	VisitsPacked    string
	SeenPacked      string
	WatchedSections []string
}

type userInfoResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		UserInfo struct {
			ID      int64             `json:"id"`
			Name    string            `json:"name"`
			Options map[string]string `json:"options"`
		} `json:"userinfo"`
	} `json:"query"`
}

// FetchUserInfo fetches the viewer's name and the options holding the
// visit log and seen set. Superseded requests are discarded.
func (c *Client) FetchUserInfo(ctx context.Context) (*UserInfo, error) {
	tok := c.latest.begin("userinfo")

	params := url.Values{
		"action":        {"query"},
		"meta":          {"userinfo"},
		"uiprop":        {"options"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	var resp userInfoResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &APIError{Code: resp.Error.Code, Info: resp.Error.Info}
	}
	if !tok.current() {
		return nil, ErrSuperseded
	}

	ui := &UserInfo{
		ID:           resp.Query.UserInfo.ID,
		Name:         resp.Query.UserInfo.Name,
		VisitsPacked: resp.Query.UserInfo.Options[VisitsOptionName],
		SeenPacked:   resp.Query.UserInfo.Options[SeenOptionName],
	}
	if ws := resp.Query.UserInfo.Options["userjs-talkpage-watched"]; ws != "" {
		var sections []string
		if err := json.Unmarshal([]byte(ws), &sections); err != nil {
			c.logger.Warn("api: bad watched-sections option, ignoring", "error", err)
		} else {
			ui.WatchedSections = sections
		}
	}
	return ui, nil
}

type existenceResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Missing bool   `json:"missing"`
			Invalid bool   `json:"invalid"`
		} `json:"pages"`
		Normalized []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"normalized"`
	} `json:"query"`
}

// FetchPageExistence reports, for each given title, whether the page
// exists. Titles are keyed as given even when the wiki normalizes them.
func (c *Client) FetchPageExistence(ctx context.Context, titles []string) (map[string]bool, error) {
	if len(titles) == 0 {
		return map[string]bool{}, nil
	}
	params := url.Values{
		"action":        {"query"},
		"titles":        {strings.Join(titles, "|")},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	var resp existenceResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &APIError{Code: resp.Error.Code, Info: resp.Error.Info}
	}

	denormalize := make(map[string]string, len(resp.Query.Normalized))
	for _, n := range resp.Query.Normalized {
		denormalize[n.To] = n.From
	}
	out := make(map[string]bool, len(titles))
	for _, p := range resp.Query.Pages {
		title := p.Title
		if from, ok := denormalize[title]; ok {
			title = from
		}
		out[title] = !p.Missing && !p.Invalid
	}
	return out, nil
}

type optionsResponse struct {
	Error   *apiError `json:"error"`
	Options string    `json:"options"`
}

// SaveOption stores a user option. Values over OptionSizeLimit fail with
// ErrOptionTooLarge without touching the network; the caller prunes and
// retries once.
func (c *Client) SaveOption(ctx context.Context, name, value string) error {
	if len(value) > OptionSizeLimit {
		return fmt.Errorf("api: option %q is %d bytes: %w", name, len(value), ErrOptionTooLarge)
	}

	form := url.Values{
		"action":        {"options"},
		"optionname":    {name},
		"optionvalue":   {value},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	var resp optionsResponse
	if err := c.post(ctx, form, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		if resp.Error.Code == "toolong" {
			return fmt.Errorf("api: option %q: %w", name, ErrOptionTooLarge)
		}
		return &APIError{Code: resp.Error.Code, Info: resp.Error.Info}
	}
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	u := c.endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: "build request", Err: err}
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: req.Method + " " + c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			Op:  req.Method + " " + c.endpoint,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}
