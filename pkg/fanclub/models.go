package fanclub

import (
	"strings"
	"time"

	"fcsync/pkg/models"
)

type channelResponse struct {
	Fanclub apiFanclub `json:"fanclub"`
}

type apiFanclub struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	User  apiUser   `json:"user"`
	Plans []apiPlan `json:"plans"`
}

type apiUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type apiPlan struct {
	ID    int64     `json:"id"`
	Price int       `json:"price"`
	Order *apiOrder `json:"order"`
}

type apiOrder struct {
	Status string `json:"status"`
}

type postResponse struct {
	Post apiPost `json:"post"`
}

type apiPost struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Comment      *string      `json:"comment"`
	Rating       string       `json:"rating"`
	PostedAt     string       `json:"posted_at"`
	Fanclub      apiFanclub   `json:"fanclub"`
	Tags         []apiTag     `json:"tags"`
	PostContents []apiContent `json:"post_contents"`
}

type apiTag struct {
	Name string `json:"name"`
}

type apiContent struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Category          string     `json:"category"`
	VisibleStatus     string     `json:"visible_status"`
	Plan              *apiPlan   `json:"plan"`
	PostContentPhotos []apiPhoto `json:"post_content_photos"`
	ContentType       string     `json:"content_type"`
	DownloadURI       string     `json:"download_uri"`
}

type apiPhoto struct {
	ID  int64 `json:"id"`
	URL struct {
		Original string `json:"original"`
	} `json:"url"`
}

type feedResponse struct {
	Posts []struct {
		ID       int64  `json:"id"`
		PostedAt string `json:"posted_at"`
	} `json:"posts"`
	HasNext bool `json:"has_next"`
}

const joinedStatus = "joined"

// joinedPrice returns the price of the plan the account has joined, 0 if none
func (f apiFanclub) joinedPrice() int {
	for _, plan := range f.Plans {
		if plan.Order != nil && plan.Order.Status == joinedStatus {
			return plan.Price
		}
	}
	return 0
}

func (f apiFanclub) toChannel() models.Channel {
	return models.Channel{
		ID:        f.ID,
		Name:      f.Name,
		OwnerName: f.User.Name,
		OwnerID:   f.User.ID,
		Price:     f.joinedPrice(),
	}
}

func (p apiPost) toPost(base string) models.Post {
	post := models.Post{
		ID:        p.ID,
		ChannelID: p.Fanclub.ID,
		Title:     p.Title,
		Rating:    p.Rating,
	}
	if p.Comment != nil {
		post.Description = *p.Comment
	}
	if t, err := parsePostedAt(p.PostedAt); err == nil {
		post.PublishedAt = t
	}

	post.Tags = make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		post.Tags = append(post.Tags, tag.Name)
	}

	for i, c := range p.PostContents {
		block := models.ContentBlock{
			Index:   i + 1,
			Kind:    models.BlockKind(c.Category),
			Visible: c.VisibleStatus == "visible",
			Title:   c.Title,
		}
		if c.Plan != nil {
			block.PlanPrice = c.Plan.Price
		}

		switch block.Kind {
		case models.BlockGallery:
			for _, photo := range c.PostContentPhotos {
				block.PhotoURLs = append(block.PhotoURLs, ResolveURL(base, photo.URL.Original))
			}
		case models.BlockFile:
			block.URL = ResolveURL(base, c.DownloadURI)
			block.MimeHint = c.ContentType
		}

		post.Blocks = append(post.Blocks, block)
	}

	return post
}

// parsePostedAt accepts the minute-granular display form and RFC 1123 with
// a numeric zone. Either way the wall clock is kept and labelled UTC so that
// it compares directly with timestamps scraped from rendered pages.
func parsePostedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := models.ParseTimestamp(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
