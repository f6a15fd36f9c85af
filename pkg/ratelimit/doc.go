// Package ratelimit spaces requests to the remote service.
//
// The sync issues two independent streams of counted requests, feed pages
// and content downloads, each gated by its own MinInterval. Requests that
// are not counted (HEAD requests, post metadata, skipped downloads) bypass
// the limiter entirely.
package ratelimit
