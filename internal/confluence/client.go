package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Sentinel errors surfaced by the client. The content layer maps these into
// its own taxonomy.
var (
	// ErrNotFound indicates the external store has no page with the given id.
	ErrNotFound = eris.New("external page not found")
	// ErrUnavailable wraps transport failures and 5xx responses.
	ErrUnavailable = eris.New("external store unavailable")
)

// PageSnapshot is a full read of one external page.
type PageSnapshot struct {
	ID         string
	Title      string
	ParentID   *string
	BodyHTML   string
	Labels     []string
	AuthorName string
	UpdatedAt  time.Time
}

// ChildStub is a lightweight child listing entry.
type ChildStub struct {
	ID          string
	Title       string
	HasChildren bool
}

// Store is the authoritative external content store. The mirror never owns
// page bodies or hierarchy; every structural fact originates here.
type Store interface {
	GetPage(ctx context.Context, id string) (*PageSnapshot, error)
	GetChildren(ctx context.Context, id string) ([]ChildStub, error)
	CreatePage(ctx context.Context, title, parentID, storageBody string) (*PageSnapshot, error)
	UpdatePage(ctx context.Context, id, title, storageBody string) (*PageSnapshot, error)
	DeletePage(ctx context.Context, id string) error
	AddLabel(ctx context.Context, id, name string) error
	RemoveLabel(ctx context.Context, id, name string) error
	AddComment(ctx context.Context, id, text string) error
	UploadAttachment(ctx context.Context, id, fileName string, data io.Reader) error
}

// ClientOptions controls how the REST client is initialised.
type ClientOptions struct {
	BaseURL    string
	Username   string
	APIToken   string
	SpaceKey   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

const defaultTimeout = 15 * time.Second

// Client talks to a Confluence-style REST API.
type Client struct {
	baseURL  string
	username string
	apiToken string
	spaceKey string
	http     *http.Client
	logger   *logrus.Logger
}

var _ Store = (*Client)(nil)

// NewClient constructs a REST client with a bounded request timeout.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, eris.New("external store base url is required")
	}
	if strings.TrimSpace(opts.SpaceKey) == "" {
		return nil, eris.New("external store space key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		username: opts.Username,
		apiToken: opts.APIToken,
		spaceKey: opts.SpaceKey,
		http:     httpClient,
		logger:   opts.Logger,
	}, nil
}

type contentPayload struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
		By     struct {
			DisplayName string `json:"displayName"`
		} `json:"by"`
	} `json:"version"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
	Body struct {
		View struct {
			Value string `json:"value"`
		} `json:"view"`
	} `json:"body"`
	Metadata struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
	Children struct {
		Page struct {
			Size int `json:"size"`
		} `json:"page"`
	} `json:"children"`
}

func (p *contentPayload) snapshot() *PageSnapshot {
	snap := &PageSnapshot{
		ID:         p.ID,
		Title:      p.Title,
		BodyHTML:   p.Body.View.Value,
		AuthorName: p.Version.By.DisplayName,
	}

	if len(p.Ancestors) > 0 {
		parent := p.Ancestors[len(p.Ancestors)-1].ID
		snap.ParentID = &parent
	}

	for _, label := range p.Metadata.Labels.Results {
		snap.Labels = append(snap.Labels, label.Name)
	}

	if when, err := time.Parse(time.RFC3339, p.Version.When); err == nil {
		snap.UpdatedAt = when
	}

	return snap
}

// GetPage fetches a full page snapshot: body, version, labels and ancestors.
func (c *Client) GetPage(ctx context.Context, id string) (*PageSnapshot, error) {
	path := fmt.Sprintf("/rest/api/content/%s?expand=%s", url.PathEscape(id),
		url.QueryEscape("body.view,version,metadata.labels,ancestors"))

	var payload contentPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	return payload.snapshot(), nil
}

// GetChildren lists the direct child pages of the given page.
func (c *Client) GetChildren(ctx context.Context, id string) ([]ChildStub, error) {
	path := fmt.Sprintf("/rest/api/content/%s/child/page?limit=200&expand=%s",
		url.PathEscape(id), url.QueryEscape("children.page"))

	var payload struct {
		Results []contentPayload `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	stubs := make([]ChildStub, 0, len(payload.Results))
	for _, result := range payload.Results {
		stubs = append(stubs, ChildStub{
			ID:          result.ID,
			Title:       result.Title,
			HasChildren: result.Children.Page.Size > 0,
		})
	}

	return stubs, nil
}

// CreatePage creates a page under the given parent in the configured space.
func (c *Client) CreatePage(ctx context.Context, title, parentID, storageBody string) (*PageSnapshot, error) {
	body := map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]string{"key": c.spaceKey},
		"body": map[string]any{
			"storage": map[string]string{"value": storageBody, "representation": "storage"},
		},
	}
	if parentID != "" {
		body["ancestors"] = []map[string]string{{"id": parentID}}
	}

	var payload contentPayload
	if err := c.do(ctx, http.MethodPost, "/rest/api/content", body, &payload); err != nil {
		return nil, err
	}

	snap := payload.snapshot()
	if snap.ParentID == nil && parentID != "" {
		parent := parentID
		snap.ParentID = &parent
	}

	return snap, nil
}

// UpdatePage replaces a page's title and storage-format body. The current
// version number is fetched first because the API requires it incremented.
func (c *Client) UpdatePage(ctx context.Context, id, title, storageBody string) (*PageSnapshot, error) {
	var current contentPayload
	path := fmt.Sprintf("/rest/api/content/%s?expand=version", url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &current); err != nil {
		return nil, err
	}

	body := map[string]any{
		"type":    "page",
		"title":   title,
		"version": map[string]any{"number": current.Version.Number + 1, "message": "Updated via Knowledge Hub portal"},
		"body": map[string]any{
			"storage": map[string]string{"value": storageBody, "representation": "storage"},
		},
	}

	var payload contentPayload
	updatePath := fmt.Sprintf("/rest/api/content/%s", url.PathEscape(id))
	if err := c.do(ctx, http.MethodPut, updatePath, body, &payload); err != nil {
		return nil, err
	}

	return payload.snapshot(), nil
}

// DeletePage trashes a page in the external store.
func (c *Client) DeletePage(ctx context.Context, id string) error {
	path := fmt.Sprintf("/rest/api/content/%s", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// AddLabel attaches a label to a page.
func (c *Client) AddLabel(ctx context.Context, id, name string) error {
	path := fmt.Sprintf("/rest/api/content/%s/label", url.PathEscape(id))
	body := []map[string]string{{"prefix": "global", "name": name}}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// RemoveLabel detaches a label from a page. A missing label is not an error.
func (c *Client) RemoveLabel(ctx context.Context, id, name string) error {
	path := fmt.Sprintf("/rest/api/content/%s/label?name=%s", url.PathEscape(id), url.QueryEscape(name))
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if eris.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// AddComment posts a comment to a page.
func (c *Client) AddComment(ctx context.Context, id, text string) error {
	body := map[string]any{
		"type":      "comment",
		"container": map[string]string{"id": id, "type": "page"},
		"body": map[string]any{
			"storage": map[string]string{"value": "<p>" + text + "</p>", "representation": "storage"},
		},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/content", body, nil)
}

// UploadAttachment streams one attachment onto a page.
func (c *Client) UploadAttachment(ctx context.Context, id, fileName string, data io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return eris.Wrap(err, "building attachment form")
	}
	if _, err := io.Copy(part, data); err != nil {
		return eris.Wrap(err, "copying attachment data")
	}
	if err := writer.Close(); err != nil {
		return eris.Wrap(err, "closing attachment form")
	}

	path := fmt.Sprintf("%s/rest/api/content/%s/child/attachment", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return eris.Wrap(err, "building attachment request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrapf(err, "building %s request", method)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(logrus.Fields{"method": method, "path": path}, err, "external store request failed")
		return eris.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		c.logError(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}, err, "external store request rejected")
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decoding external store response")
	}

	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.username != "" || c.apiToken != "" {
		req.SetBasicAuth(c.username, c.apiToken)
	}
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return eris.Wrapf(ErrNotFound, "status %d", resp.StatusCode)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return eris.Wrapf(ErrUnavailable, "status %d", resp.StatusCode)
	default:
		return eris.Errorf("external store returned status %d", resp.StatusCode)
	}
}

func (c *Client) logError(fields logrus.Fields, err error, message string) {
	if c.logger == nil {
		return
	}

	entry := c.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
