package fanclub

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"fcsync/pkg/models"
)

const (
	// DefaultBaseURL is the service root
	DefaultBaseURL = "https://fantia.jp"

	// SessionCookie carries the logged-in identity
	SessionCookie = "_session_id"

	apiPrefix = "/api/v1"
)

// loginPaths are where the service sends requests without a valid session
var loginPaths = []string{"/sessions/signin", "/auth/login", "/login"}

// MeURL returns the session check endpoint
func MeURL(base string) string {
	return base + apiPrefix + "/me"
}

// ChannelURL returns the structured channel endpoint
func ChannelURL(base string, channelID int64) string {
	return fmt.Sprintf("%s%s/fanclubs/%d", base, apiPrefix, channelID)
}

// PostURL returns the structured post endpoint
func PostURL(base string, postID int64) string {
	return fmt.Sprintf("%s%s/posts/%d", base, apiPrefix, postID)
}

// FeedPageURL returns the rendered feed page of a channel, 1-based
func FeedPageURL(base string, channelID int64, page int) string {
	return fmt.Sprintf("%s/fanclubs/%d/posts?page=%d", base, channelID, page)
}

// APIFeedPageURL returns the structured feed page of a channel, 1-based
func APIFeedPageURL(base string, channelID int64, page int) string {
	return fmt.Sprintf("%s%s/fanclubs/%d/posts?page=%d", base, apiPrefix, channelID, page)
}

// PlansURL returns the directory page listing subscriptions of one tier
func PlansURL(base string, tier models.Tier) string {
	params := url.Values{}
	params.Set("type", string(tier))
	return fmt.Sprintf("%s/mypage/users/plans?%s", base, params.Encode())
}

// ResolveURL makes a site-relative reference absolute against base
func ResolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return strings.TrimRight(base, "/") + ref
}

// isLoginPath reports whether a response landed on a sign-in page
func isLoginPath(path string) bool {
	for _, p := range loginPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// lastPathID extracts the trailing numeric id of a link such as /posts/123
func lastPathID(href string) (int64, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return 0, false
	}
	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return 0, false
	}
	id, err := strconv.ParseInt(path[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
