package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	errs "fcsync/pkg/errors"
	"fcsync/pkg/models"
	"fcsync/pkg/storage"

	"mvdan.cc/xurls/v2"
)

var linkPattern = xurls.Strict()

// PostMetadata is the simplified snapshot of a post written next to its
// content
type PostMetadata struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Description string   `json:"description,omitempty"`
	Fanclub     Fanclub  `json:"fanclub"`
	Rating      string   `json:"rating"`
	Tags        []string `json:"tags"`
	Links       []string `json:"links,omitempty"`
	Contents    []Block  `json:"contents,omitempty"`
}

// Fanclub summarizes the owning channel
type Fanclub struct {
	ID       int64  `json:"id"`
	Name     string `json:"fanclub"`
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
	Price    int    `json:"price"`
}

// Block records one content block as it was seen at sync time
type Block struct {
	Index     int    `json:"index"`
	Kind      string `json:"category"`
	Title     string `json:"title,omitempty"`
	Visible   bool   `json:"visible"`
	PlanPrice int    `json:"plan_price,omitempty"`
}

// FromPost builds the snapshot for post as published in channel
func FromPost(channel models.Channel, post models.Post) *PostMetadata {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	meta := &PostMetadata{
		ID:          post.ID,
		Title:       post.Title,
		Date:        models.FormatTimestamp(post.PublishedAt),
		Description: post.Description,
		Fanclub: Fanclub{
			ID:       channel.ID,
			Name:     channel.Name,
			Username: channel.OwnerName,
			UserID:   channel.OwnerID,
			Price:    channel.Price,
		},
		Rating: post.Rating,
		Tags:   tags,
		Links:  ExtractLinks(post.Description),
	}

	for _, block := range post.Blocks {
		meta.Contents = append(meta.Contents, Block{
			Index:     block.Index,
			Kind:      string(block.Kind),
			Title:     block.Title,
			Visible:   block.Visible,
			PlanPrice: block.PlanPrice,
		})
	}

	return meta
}

// ExtractLinks returns the distinct absolute URLs in text, in order of
// appearance. Creators often point to files hosted elsewhere.
func ExtractLinks(text string) []string {
	var links []string
	seen := make(map[string]struct{})
	for _, u := range linkPattern.FindAllString(text, -1) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		links = append(links, u)
	}
	return links
}

// Save writes the snapshot into dir, replacing any previous one
func (m *PostMetadata) Save(dir string) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if _, err := storage.WriteAtomic(filepath.Join(dir, storage.MetadataFile), &buf); err != nil {
		return err
	}
	return nil
}

// Load reads the snapshot stored in dir
func Load(dir string) (*PostMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, storage.MetadataFile))
	if err != nil {
		return nil, errs.Filesystem(err, "read metadata in %s", dir)
	}

	var meta PostMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decode metadata in %s", dir)
	}
	return &meta, nil
}
