package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
)

type Client struct {
    baseURL string
    token   string
    user    string
    pass    string
    http    *http.Client
    log     zerolog.Logger
    apiVer  string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        token:   cfg.JiraPAT,
        user:    cfg.JiraUsername,
        pass:    cfg.JiraPassword,
        http:    &http.Client{Timeout: cfg.HTTPTimeout},
        log:     log,
        apiVer:  cfg.JiraAPIVersion,
    }
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        var r io.Reader
        if payload != nil { r = strings.NewReader(string(payload)) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        c.auth(req)
        resp, err := c.http.Do(req)
        if err != nil {
            lastErr = err
        } else {
            out, retryable, derr := decodeResponse(resp)
            if derr == nil { return out, nil }
            if !retryable { return nil, derr }
            lastErr = derr
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

func decodeResponse(resp *http.Response) (out map[string]any, retryable bool, err error) {
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        err = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
        // retry on 429/5xx
        return nil, resp.StatusCode == 429 || resp.StatusCode >= 500, err
    }
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, false, err }
    return out, false, nil
}

func (c *Client) auth(req *http.Request) {
    if c.token != "" {
        req.Header.Set("Authorization", "Bearer "+c.token)
    } else if c.user != "" && c.pass != "" {
        req.SetBasicAuth(c.user, c.pass)
    }
}

// Search pages a JQL query; the caller passes expand=changelog via fields of
// the v2 GET form or the v3 POST body.
func (c *Client) Search(ctx context.Context, jql string, startAt, max int) (map[string]any, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        q.Set("fields", "*all")
        q.Set("expand", "changelog")
        u := c.apiURL("/rest/api/2/search", q)
        return c.doJSON(ctx, http.MethodGet, u, nil)
    }
    body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": []string{"*all"}, "expand": []string{"changelog"}}
    u := c.apiURL("/rest/api/3/search", nil)
    return c.doJSON(ctx, http.MethodPost, u, body)
}

// Issue fetches a single issue with full fields and changelog.
func (c *Client) Issue(ctx context.Context, key string) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    q.Set("fields", "*all")
    q.Set("expand", "changelog")
    path := "/rest/api/3/issue/" + url.PathEscape(key)
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) }
    u := c.apiURL(path, q)
    return c.doJSON(ctx, http.MethodGet, u, nil)
}

// Changelog pages the full history of one issue when the search expand was
// truncated by the server.
func (c *Client) Changelog(ctx context.Context, key string, startAt, max int) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    path := "/rest/api/3/issue/" + url.PathEscape(key) + "/changelog"
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) + "/changelog" }
    u := c.apiURL(path, q)
    return c.doJSON(ctx, http.MethodGet, u, nil)
}

// Fields lists all fields, used to resolve custom-field ids by display name.
// The endpoint returns a bare array, so it bypasses doJSON.
func (c *Client) Fields(ctx context.Context) ([]map[string]any, error) {
    u := c.apiURL("/rest/api/2/field", nil)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil { return nil, err }
    c.auth(req)
    resp, err := c.http.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
    }
    var out []map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
    return out, nil
}
