package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePRURL(t *testing.T) {
	cases := []struct {
		url    string
		owner  string
		repo   string
		number int
		ok     bool
	}{
		{"https://github.com/acme/widget/pull/42", "acme", "widget", 42, true},
		{"http://github.com/acme/widget/pull/1", "acme", "widget", 1, true},
		{"https://github.com/acme/widget/pull/42/files", "acme", "widget", 42, true},
		{"https://github.com/acme/widget/issues/42", "", "", 0, false},
		{"https://gitlab.com/acme/widget/pull/42", "", "", 0, false},
		{"not a url", "", "", 0, false},
	}
	for _, tc := range cases {
		owner, repo, number, err := ParsePRURL(tc.url)
		if !tc.ok {
			var invalidErr *InvalidURLError
			require.Error(t, err, tc.url)
			require.True(t, errors.As(err, &invalidErr), "want InvalidURLError for %s", tc.url)
			continue
		}
		require.NoError(t, err, tc.url)
		require.Equal(t, tc.owner, owner)
		require.Equal(t, tc.repo, repo)
		require.Equal(t, tc.number, number)
	}
}

func TestGetPRInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/pulls/42", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Fix widget alignment",
			"state": "open",
			"head": {
				"ref": "fix-alignment",
				"sha": "aaaa1111",
				"repo": {"clone_url": "https://github.com/fork/widget.git"}
			},
			"base": {
				"ref": "main",
				"sha": "bbbb2222",
				"repo": {"clone_url": "https://github.com/acme/widget.git"}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	info, err := c.GetPRInfo(context.Background(), "https://github.com/acme/widget/pull/42")
	require.NoError(t, err)
	require.Equal(t, "acme", info.RepoOwner)
	require.Equal(t, "widget", info.RepoName)
	require.Equal(t, 42, info.PRNumber)
	require.Equal(t, "fix-alignment", info.SourceBranch)
	require.Equal(t, "aaaa1111", info.SourceCommit)
	require.Equal(t, "https://github.com/fork/widget.git", info.SourceRepoURL)
	require.Equal(t, "main", info.TargetBranch)
	require.Equal(t, "bbbb2222", info.TargetCommit)
	require.Equal(t, "https://github.com/acme/widget.git", info.TargetRepoURL)
	require.Equal(t, "Fix widget alignment", info.Title)
	require.Equal(t, "open", info.State)
}

func TestGetPRInfoDeletedFork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Orphaned PR",
			"state": "closed",
			"head": {"ref": "gone", "sha": "aaaa1111", "repo": null},
			"base": {
				"ref": "main",
				"sha": "bbbb2222",
				"repo": {"clone_url": "https://github.com/acme/widget.git"}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	info, err := c.GetPRInfo(context.Background(), "https://github.com/acme/widget/pull/7")
	require.NoError(t, err)
	require.Equal(t, "https://github.com/acme/widget.git", info.SourceRepoURL,
		"deleted fork must fall back to the base repo clone URL")
}

func TestGetPRInfoAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.GetPRInfo(context.Background(), "https://github.com/acme/widget/pull/404")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestGetPRInfoInvalidURL(t *testing.T) {
	c := NewClient("")
	_, err := c.GetPRInfo(context.Background(), "https://example.com/nope")
	var invalidErr *InvalidURLError
	require.True(t, errors.As(err, &invalidErr))
}
