package fanclub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
	"fcsync/pkg/models"
	"fcsync/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	cfg.RateLimitBackoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	return cfg
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:   server.URL,
		SessionID: "secret-session",
		Retry:     fastRetry(),
		Logger:    logger.NewTestLogger(),
	})
	require.NoError(t, err)
	return client, server
}

func requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value != "secret-session" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func TestCheckSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/me", requireSession(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"current_user":{"id":1}}`)
	}))
	client, server := newTestClient(t, mux)

	require.NoError(t, client.CheckSession(context.Background()))

	anonymous, err := NewClient(Options{BaseURL: server.URL, Retry: fastRetry()})
	require.NoError(t, err)
	err = anonymous.CheckSession(context.Background())
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuthExpired))
	assert.True(t, errs.IsFatal(err))
}

func TestCheckSessionOutageIsNotAuthExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client, _ := newTestClient(t, mux)

	err := client.CheckSession(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeServerError))
	assert.False(t, errs.IsType(err, errs.ErrorTypeAuthExpired))

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusServiceUnavailable, typed.Code)
}

func TestSignInRedirectIsAuthExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mypage/users/plans", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sessions/signin", http.StatusFound)
	})
	mux.HandleFunc("/sessions/signin", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>please log in</body></html>")
	})
	client, _ := newTestClient(t, mux)

	_, err := NewDirectory(client).ListSubscribed(context.Background(), models.TierPaid)
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuthExpired))
}

func TestFetchChannel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/fanclubs/12", requireSession(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"fanclub":{"id":12,"name":"Sketch Club","user":{"id":34,"name":"artist"},
			"plans":[{"id":1,"price":300,"order":{"status":"not_joined"}},
			         {"id":2,"price":500,"order":{"status":"joined"}}]}}`)
	}))
	client, _ := newTestClient(t, mux)

	channel, err := client.FetchChannel(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, models.Channel{ID: 12, Name: "Sketch Club", OwnerName: "artist", OwnerID: 34, Price: 500}, *channel)
}

func TestFetchChannelWithoutJoinedPlanIsFree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/fanclubs/12", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"fanclub":{"id":12,"name":"n","user":{"id":1,"name":"u"},"plans":[{"price":300,"order":null}]}}`)
	})
	client, _ := newTestClient(t, mux)

	channel, err := client.FetchChannel(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, 0, channel.Price)
}

func TestFetchPost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/posts/9001", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"post":{
			"id":9001,"title":"Weekly","comment":"notes","rating":"general",
			"posted_at":"Wed, 01 May 2024 12:30:00 +0900",
			"fanclub":{"id":12,"name":"Sketch Club","user":{"id":34,"name":"artist"}},
			"tags":[{"name":"wip"},{"name":"color"}],
			"post_contents":[
				{"id":1,"title":"pics","category":"photo_gallery","visible_status":"visible","plan":null,
				 "post_content_photos":[{"id":10,"url":{"original":"https://cdn.example.com/a.jpg"}},{"id":11,"url":{"original":"https://cdn.example.com/b.png"}}]},
				{"id":2,"title":"zip","category":"file","visible_status":"visible","plan":{"price":300},
				 "content_type":"application/zip","download_uri":"/posts/9001/download/2"},
				{"id":3,"title":"text","category":"text","visible_status":"visible"},
				{"id":4,"title":"paid","category":"file","visible_status":"hidden","plan":{"price":1000}}
			]}}`)
	})
	client, server := newTestClient(t, mux)

	post, err := client.FetchPost(context.Background(), 9001)
	require.NoError(t, err)

	assert.Equal(t, int64(9001), post.ID)
	assert.Equal(t, int64(12), post.ChannelID)
	assert.Equal(t, "notes", post.Description)
	assert.Equal(t, []string{"wip", "color"}, post.Tags)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), post.PublishedAt)
	require.Len(t, post.Blocks, 4)

	gallery := post.Blocks[0]
	assert.Equal(t, 1, gallery.Index)
	assert.Equal(t, models.BlockGallery, gallery.Kind)
	assert.True(t, gallery.Visible)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.png"}, gallery.PhotoURLs)

	file := post.Blocks[1]
	assert.Equal(t, models.BlockFile, file.Kind)
	assert.Equal(t, server.URL+"/posts/9001/download/2", file.URL)
	assert.Equal(t, "application/zip", file.MimeHint)
	assert.Equal(t, 300, file.PlanPrice)

	assert.Equal(t, models.BlockKind("text"), post.Blocks[2].Kind)
	assert.False(t, post.Blocks[3].Visible)
	assert.Equal(t, server.URL+"/api/v1/posts/9001", client.headers["Referer"])
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/fanclubs/1", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"fanclub":{"id":1,"name":"n","user":{"id":2,"name":"u"}}}`)
	})
	client, _ := newTestClient(t, mux)

	_, err := client.FetchChannel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestGetJSONDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/posts/5", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})
	client, _ := newTestClient(t, mux)

	_, err := client.FetchPost(context.Background(), 5)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	assert.Equal(t, 1, calls)
}

func TestGetJSONParseError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/posts/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	})
	client, _ := newTestClient(t, mux)

	_, err := client.FetchPost(context.Background(), 5)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}

func TestHeadAndOpen(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, "jpeg-bytes")
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	client, server := newTestClient(t, mux)
	ctx := context.Background()

	mediaType, err := client.Head(ctx, server.URL+"/file")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mediaType)

	body, err := client.Open(ctx, server.URL+"/file")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = client.Open(ctx, server.URL+"/gone")
	require.Error(t, err)
	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusGone, typed.Code)
}

func TestContentStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sessions/signin", http.StatusFound)
	})
	mux.HandleFunc("/sessions/signin", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>please log in</body></html>")
	})
	client, server := newTestClient(t, mux)
	ctx := context.Background()

	t.Run("rejected file is a download error", func(t *testing.T) {
		_, err := client.Head(ctx, server.URL+"/forbidden")
		require.Error(t, err)
		assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))
		assert.False(t, errs.IsFatal(err))

		_, err = client.Open(ctx, server.URL+"/forbidden")
		var typed *errs.Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, errs.ErrorTypeDownload, typed.Type)
		assert.Equal(t, http.StatusForbidden, typed.Code)
	})

	t.Run("sign-in redirect is an expired session", func(t *testing.T) {
		_, err := client.Open(ctx, server.URL+"/private")
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrSignInRedirect)
		assert.True(t, errs.IsFatal(err))
	})
}

func TestCancelledContextIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/fanclubs/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	client, _ := newTestClient(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchChannel(ctx, 1)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image/jpeg", MediaType("image/jpeg"))
	assert.Equal(t, "text/html", MediaType("Text/HTML; charset=utf-8"))
	assert.Equal(t, "", MediaType(""))
	assert.Equal(t, "weird", MediaType(" weird ;;bad"))
}

func TestEndpoints(t *testing.T) {
	assert.Equal(t, "https://fantia.jp/fanclubs/12/posts?page=3", FeedPageURL(DefaultBaseURL, 12, 3))
	assert.Equal(t, "https://fantia.jp/api/v1/fanclubs/12/posts?page=1", APIFeedPageURL(DefaultBaseURL, 12, 1))
	assert.Equal(t, "https://fantia.jp/mypage/users/plans?type=not_free", PlansURL(DefaultBaseURL, models.TierPaid))
	assert.Equal(t, "https://fantia.jp/posts/1/download/2", ResolveURL(DefaultBaseURL+"/", "/posts/1/download/2"))
	assert.Equal(t, "https://cdn.example.com/x", ResolveURL(DefaultBaseURL, "https://cdn.example.com/x"))

	id, ok := lastPathID("/posts/123")
	assert.True(t, ok)
	assert.Equal(t, int64(123), id)
	_, ok = lastPathID("/posts/abc")
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(MeURL(DefaultBaseURL), DefaultBaseURL))
}
