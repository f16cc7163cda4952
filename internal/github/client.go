// Package github fetches pull request metadata from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/fixagent/prverify/internal/model"
)

const defaultBaseURL = "https://api.github.com"

var prURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// InvalidURLError means a PR URL could not be parsed.
type InvalidURLError struct {
	URL string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid GitHub PR URL: %s", e.URL)
}

// Client talks to the GitHub API. Construct with NewClient; tokens and base
// URLs are passed in explicitly, never read from ambient process state.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint (GitHub
// Enterprise, test servers).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a GitHub client. An empty token means unauthenticated
// requests.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParsePRURL extracts owner, repo, and PR number from a GitHub PR URL.
func ParsePRURL(prURL string) (owner, repo string, number int, err error) {
	m := prURLPattern.FindStringSubmatch(prURL)
	if m == nil {
		return "", "", 0, &InvalidURLError{URL: prURL}
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, &InvalidURLError{URL: prURL}
	}
	return m[1], m[2], number, nil
}

type prResponse struct {
	Title string `json:"title"`
	State string `json:"state"`
	Head  struct {
		Ref  string `json:"ref"`
		SHA  string `json:"sha"`
		Repo *struct {
			CloneURL string `json:"clone_url"`
		} `json:"repo"`
	} `json:"head"`
	Base struct {
		Ref  string `json:"ref"`
		SHA  string `json:"sha"`
		Repo struct {
			CloneURL string `json:"clone_url"`
		} `json:"repo"`
	} `json:"base"`
}

// GetPRInfo fetches PR metadata for a PR URL.
func (c *Client) GetPRInfo(ctx context.Context, prURL string) (*model.PRInfo, error) {
	owner, repo, number, err := ParsePRURL(prURL)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	var pr prResponse
	if err := c.getJSON(ctx, endpoint, &pr); err != nil {
		return nil, fmt.Errorf("fetching PR %s/%s#%d: %w", owner, repo, number, err)
	}

	// A deleted source fork leaves head.repo null; fall back to the base
	// repo, where the PR ref is still fetchable.
	sourceRepoURL := pr.Base.Repo.CloneURL
	if pr.Head.Repo != nil {
		sourceRepoURL = pr.Head.Repo.CloneURL
	}

	return &model.PRInfo{
		PRURL:         prURL,
		RepoOwner:     owner,
		RepoName:      repo,
		PRNumber:      number,
		SourceBranch:  pr.Head.Ref,
		SourceCommit:  pr.Head.SHA,
		SourceRepoURL: sourceRepoURL,
		TargetBranch:  pr.Base.Ref,
		TargetCommit:  pr.Base.SHA,
		TargetRepoURL: pr.Base.Repo.CloneURL,
		Title:         pr.Title,
		State:         pr.State,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
