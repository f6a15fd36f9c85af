package fanclub

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"fcsync/pkg/logger"
	"fcsync/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

// planPriceRe matches the price inside a plan label such as "生きるプラン(300円/月)"
var planPriceRe = regexp.MustCompile(`([\d,]+)\s*円`)

// Directory lists the channels the account subscribes to
type Directory struct {
	client *Client
	logger logger.Logger
}

// NewDirectory creates a directory reader on the shared session
func NewDirectory(client *Client) *Directory {
	return &Directory{client: client, logger: client.logger}
}

// ListSubscribed returns channel stubs for one tier in page order. Callers
// need both tiers for the full set. An invalid session yields AuthExpired.
func (d *Directory) ListSubscribed(ctx context.Context, tier models.Tier) ([]models.Channel, error) {
	doc, err := d.client.GetDocument(ctx, PlansURL(d.client.baseURL, tier))
	if err != nil {
		return nil, err
	}

	channels := ParseDirectoryDocument(doc, tier)
	d.logger.InfoWithFields("Subscribed channels listed", map[string]interface{}{
		"tier":  string(tier),
		"count": len(channels),
	})
	return channels, nil
}

// ParseDirectoryDocument extracts channel stubs from a plans page. Entries
// without a channel link are ignored; a page without a list yields none.
func ParseDirectoryDocument(doc *goquery.Document, tier models.Tier) []models.Channel {
	var channels []models.Channel
	seen := make(map[int64]bool)

	doc.Find(".list-group-item").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a[href*='/fanclubs/']").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return a.Find("strong").Length() > 0
		}).First()
		if link.Length() == 0 {
			return
		}

		href, _ := link.Attr("href")
		id, ok := lastPathID(href)
		if !ok || seen[id] {
			return
		}
		seen[id] = true

		channel := models.Channel{
			ID:   id,
			Name: strings.TrimSpace(link.Find("strong").First().Text()),
			Tier: tier,
		}

		strongs := item.Find("strong")
		if strongs.Length() >= 2 {
			channel.Price = parsePlanPrice(strongs.Eq(1).Text())
		}

		channels = append(channels, channel)
	})

	return channels
}

func parsePlanPrice(label string) int {
	m := planPriceRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	price, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return price
}
