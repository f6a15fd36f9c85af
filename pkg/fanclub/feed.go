package fanclub

import (
	"context"
	"strings"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

// updatedMarker labels edited posts inside the date element and is not a date
const updatedMarker = "更新"

// MarkupFeed reads channel feeds from the rendered post listing
type MarkupFeed struct {
	client *Client
}

// NewMarkupFeed creates a feed source backed by HTML pages
func NewMarkupFeed(client *Client) *MarkupFeed {
	return &MarkupFeed{client: client}
}

// FetchPage fetches one page of a channel feed, newest first
func (f *MarkupFeed) FetchPage(ctx context.Context, channelID int64, page int) (*models.FeedPage, error) {
	doc, err := f.client.GetDocument(ctx, FeedPageURL(f.client.baseURL, channelID, page))
	if err != nil {
		return nil, err
	}
	return ParseFeedDocument(doc)
}

// ParseFeedDocument extracts (post id, publish time) pairs and the next-page
// marker from a rendered feed page. Post links and dates are matched by
// position, so differing counts mean the markup changed.
func ParseFeedDocument(doc *goquery.Document) (*models.FeedPage, error) {
	var ids []int64
	var parseErr error
	doc.Find("a.link-block").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		id, ok := lastPathID(href)
		if !ok {
			parseErr = errs.FeedParseMismatch("post link %q has no id", href)
			return false
		}
		ids = append(ids, id)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	var dates []string
	doc.Find("span.post-date").Each(func(_ int, s *goquery.Selection) {
		for _, text := range textNodes(s) {
			if text == "" || strings.Contains(text, updatedMarker) {
				continue
			}
			dates = append(dates, text)
		}
	})

	if len(ids) != len(dates) {
		return nil, errs.FeedParseMismatch("found %d post links but %d dates", len(ids), len(dates))
	}

	page := &models.FeedPage{
		HasNext: doc.Find("a[rel='next']").Length() > 0,
	}
	for i, id := range ids {
		t, err := models.ParseTimestamp(dates[i])
		if err != nil {
			return nil, errs.FeedParseMismatch("post %d has unreadable date %q", id, dates[i])
		}
		page.Entries = append(page.Entries, models.FeedEntry{PostID: id, PublishedAt: t})
	}
	return page, nil
}

// textNodes returns every trimmed text node below s in document order
func textNodes(s *goquery.Selection) []string {
	var out []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			out = append(out, strings.TrimSpace(c.Text()))
			return
		}
		out = append(out, textNodes(c)...)
	})
	return out
}

// APIFeed reads channel feeds from the structured endpoint
type APIFeed struct {
	client *Client
}

// NewAPIFeed creates a feed source backed by JSON pages
func NewAPIFeed(client *Client) *APIFeed {
	return &APIFeed{client: client}
}

// FetchPage fetches one page of a channel feed, newest first
func (f *APIFeed) FetchPage(ctx context.Context, channelID int64, page int) (*models.FeedPage, error) {
	var resp feedResponse
	if err := f.client.GetJSON(ctx, APIFeedPageURL(f.client.baseURL, channelID, page), &resp); err != nil {
		if errs.IsType(err, errs.ErrorTypeParsing) {
			return nil, errs.FeedParseMismatch("channel %d page %d: %v", channelID, page, err)
		}
		return nil, err
	}

	out := &models.FeedPage{HasNext: resp.HasNext}
	for _, p := range resp.Posts {
		t, err := parsePostedAt(p.PostedAt)
		if err != nil {
			return nil, errs.FeedParseMismatch("post %d has unreadable date %q", p.ID, p.PostedAt)
		}
		out.Entries = append(out.Entries, models.FeedEntry{PostID: p.ID, PublishedAt: t})
	}
	return out, nil
}
