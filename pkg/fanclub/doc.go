// Package fanclub talks to the fanclub platform over one cookie-authenticated
// session.
//
// Client wraps the HTTP session and maps responses onto the error taxonomy in
// pkg/errors: 401, 403 and sign-in redirects become AuthExpired, 429 becomes
// a rate-limit error and 5xx a server error. Metadata, feed and directory
// requests are retried with backoff; content bodies (Open) are not.
//
// Two feed sources read the same logical feed:
//
//	MarkupFeed  /fanclubs/{id}/posts?page=N         rendered HTML, parsed with goquery
//	APIFeed     /api/v1/fanclubs/{id}/posts?page=N  JSON
//
// Directory lists subscribed channels from /mypage/users/plans.
package fanclub
