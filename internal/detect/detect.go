// Package detect identifies a repository's build-tool family from its root
// file listing, with a primary-language fallback.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.github.com"

// Detector probes GitHub or a local checkout for ecosystem signals.
type Detector struct {
	token   string
	baseURL string
	http    *http.Client
}

// Option customizes a Detector.
type Option func(*Detector)

// WithBaseURL points the detector at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(d *Detector) { d.baseURL = u }
}

// NewDetector creates a detector. An empty token means unauthenticated
// requests.
func NewDetector(token string, opts ...Option) *Detector {
	d := &Detector{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromGitHub detects the project type of a repository branch by listing the
// root directory, falling back to the repository's primary language.
func (d *Detector) FromGitHub(ctx context.Context, owner, repo, branch string) ProjectType {
	names, err := d.listRootFiles(ctx, owner, repo, branch)
	if err != nil {
		log.Debug().Err(err).Str("repo", owner+"/"+repo).Msg("root listing failed, falling back to language detection")
	} else {
		fileSet := make(map[string]bool, len(names))
		for _, n := range names {
			fileSet[n] = true
		}
		for _, rule := range detectionRules {
			for _, indicator := range rule.Indicators {
				if matchIndicator(indicator, names, fileSet) {
					return rule.Type
				}
			}
		}
	}
	return d.fromLanguage(ctx, owner, repo)
}

// FromLocal detects the project type of a local checkout.
func (d *Detector) FromLocal(repoPath string) ProjectType {
	for _, rule := range detectionRules {
		for _, indicator := range rule.Indicators {
			if filepath.Base(indicator) != indicator {
				continue
			}
			if hasGlob(indicator) {
				matches, _ := filepath.Glob(filepath.Join(repoPath, indicator))
				if len(matches) > 0 {
					return rule.Type
				}
				continue
			}
			if _, err := os.Stat(filepath.Join(repoPath, indicator)); err == nil {
				return rule.Type
			}
		}
	}
	return Unknown
}

func hasGlob(s string) bool {
	for _, c := range s {
		if c == '*' || c == '?' || c == '[' {
			return true
		}
	}
	return false
}

func matchIndicator(indicator string, names []string, fileSet map[string]bool) bool {
	if !hasGlob(indicator) {
		return fileSet[indicator]
	}
	for _, n := range names {
		if ok, _ := filepath.Match(indicator, n); ok {
			return true
		}
	}
	return false
}

func (d *Detector) listRootFiles(ctx context.Context, owner, repo, branch string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents?ref=%s", d.baseURL, owner, repo, branch)
	var entries []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := d.getJSON(ctx, url, &entries); err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type == "file" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

func (d *Detector) fromLanguage(ctx context.Context, owner, repo string) ProjectType {
	url := fmt.Sprintf("%s/repos/%s/%s/languages", d.baseURL, owner, repo)
	languages := map[string]int64{}
	if err := d.getJSON(ctx, url, &languages); err != nil {
		log.Debug().Err(err).Str("repo", owner+"/"+repo).Msg("language detection failed")
		return Unknown
	}

	var primary string
	var max int64 = -1
	for lang, bytes := range languages {
		if bytes > max {
			primary, max = lang, bytes
		}
	}
	if t, ok := languageMap[primary]; ok {
		return t
	}
	return Unknown
}

func (d *Detector) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.http.Do(req)
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
