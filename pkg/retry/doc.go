// Package retry wraps metadata and feed requests in exponential backoff.
//
// Only errors typed as network, server or rate-limit failures are retried;
// auth, parse and not-found errors return immediately. Content downloads
// never go through this package.
//
//	cfg := retry.FromSettings(appCfg.Retry, log)
//	post, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Post, error) {
//		return client.FetchPost(ctx, id)
//	}, cfg)
package retry
