package fetcher

import "strings"

// Source identifies one reimbursement feed: a remote URL or a local file
// (the manual-upload recovery path). Exactly one of URL and Path is set.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// Remote reports whether the source is fetched over HTTP.
func (s Source) Remote() bool {
	return s.URL != ""
}

// Identity returns the stable identity used for memo keying and logging.
func (s Source) Identity() string {
	if s.Remote() {
		return s.URL
	}
	return "file:" + s.Path
}

// CacheKey combines source identity and parse options into one memo key.
func (s Source) CacheKey(opts ReadOptions) string {
	return s.Identity() + "#" + opts.CacheKey()
}

// RawContentURL rewrites an interactive hosting-page URL to its raw-content
// equivalent. It covers the two GitHub shapes the feeds live behind: gist
// pages and repository blob pages. ok is false when no rewrite applies.
func RawContentURL(rawURL string) (string, bool) {
	u := strings.TrimSuffix(strings.TrimRight(rawURL, "/"), ".git")

	if strings.Contains(u, "gist.github.com") {
		out := strings.Replace(u, "gist.github.com", "gist.githubusercontent.com", 1)
		if !strings.HasSuffix(out, "/raw") {
			out += "/raw"
		}
		return out, out != rawURL
	}

	if strings.Contains(u, "github.com") && strings.Contains(u, "/blob/") {
		out := strings.Replace(u, "github.com", "raw.githubusercontent.com", 1)
		out = strings.Replace(out, "/blob/", "/", 1)
		return out, true
	}

	return "", false
}
