// Package scraper resolves Instagram and TikTok post URLs into
// structured post data. Both platforms are scraped from public HTML:
// TikTok pages embed a JSON payload the parser prefers, and both fall
// back to OpenGraph meta tags.
package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/model"
)

// Platform identifiers, also stored on memo sources.
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
)

// A mobile Safari UA; both platforms serve richer public HTML to it.
const userAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1"

// Post is a scraped SNS post.
type Post struct {
	Platform  string     `json:"platform"`
	PostID    string     `json:"postId"`
	URL       string     `json:"url"`
	Author    Author     `json:"author"`
	Content   Content    `json:"content"`
	Media     Media      `json:"media"`
	Location  *Location  `json:"location,omitempty"`
	Likes     int64      `json:"likes,omitempty"`
	Comments  int64      `json:"comments,omitempty"`
	Shares    int64      `json:"shares,omitempty"`
	Views     int64      `json:"views,omitempty"`
	PostedAt  *time.Time `json:"postedAt,omitempty"`
	ScrapedAt time.Time  `json:"scrapedAt"`
}

type Author struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Verified     bool   `json:"verified,omitempty"`
}

type Content struct {
	Caption  string   `json:"caption,omitempty"`
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions"`
}

type Media struct {
	Type         string   `json:"type"` // image, video, carousel
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	MediaURLs    []string `json:"mediaUrls"`
	Duration     int64    `json:"duration,omitempty"`
}

type Location struct {
	Name string `json:"name"`
}

// Service scrapes public post pages.
type Service struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewService(log zerolog.Logger) *Service {
	return &Service{
		client: resty.New().
			SetTimeout(15 * time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8").
			SetHeader("Accept-Language", "en-US,en;q=0.5"),
		log: log,
	}
}

// DetectPlatform maps a URL to a supported platform, or "" for none.
// Matching is by host substring, case-insensitive.
func DetectPlatform(url string) string {
	normalized := strings.ToLower(url)
	if strings.Contains(normalized, "instagram.com") {
		return PlatformInstagram
	}
	if strings.Contains(normalized, "tiktok.com") {
		return PlatformTikTok
	}
	return ""
}

// ScrapePost fetches and parses a post from a supported platform URL.
func (s *Service) ScrapePost(ctx context.Context, url string) (*Post, error) {
	switch DetectPlatform(url) {
	case PlatformInstagram:
		return s.scrapeInstagram(ctx, url)
	case PlatformTikTok:
		return s.scrapeTikTok(ctx, url)
	default:
		return nil, fmt.Errorf("%w: unsupported platform URL", model.ErrValidation)
	}
}

// CheckAccessibility probes a URL with a HEAD request.
func (s *Service) CheckAccessibility(ctx context.Context, url string) bool {
	resp, err := s.client.R().SetContext(ctx).Head(url)
	return err == nil && resp.StatusCode() == 200
}

func (s *Service) scrapeInstagram(ctx context.Context, url string) (*Post, error) {
	postID := extractInstagramPostID(url)
	if postID == "" {
		return nil, fmt.Errorf("%w: invalid Instagram post URL", model.ErrValidation)
	}

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch instagram post: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch instagram post: status %d", resp.StatusCode())
	}

	page, err := parsePage(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parse instagram post: %w", err)
	}

	caption := page.meta["og:description"]
	post := &Post{
		Platform:  PlatformInstagram,
		PostID:    postID,
		URL:       url,
		Author:    Author{Username: instagramUsername(page.meta["og:title"])},
		Content:   Content{Caption: caption, Hashtags: ExtractHashtags(caption), Mentions: ExtractMentions(caption)},
		Media:     Media{Type: "image"},
		ScrapedAt: time.Now(),
	}
	post.Author.DisplayName = post.Author.Username
	if img := page.meta["og:image"]; img != "" {
		post.Media.ThumbnailURL = img
		post.Media.MediaURLs = []string{img}
	}
	if page.locationName != "" {
		post.Location = &Location{Name: page.locationName}
	}
	return post, nil
}

func (s *Service) scrapeTikTok(ctx context.Context, url string) (*Post, error) {
	expanded := s.expandShortURL(ctx, url)
	postID := extractTikTokPostID(expanded)

	resp, err := s.client.R().SetContext(ctx).Get(expanded)
	if err != nil {
		return nil, fmt.Errorf("fetch tiktok post: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch tiktok post: status %d", resp.StatusCode())
	}

	page, err := parsePage(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parse tiktok post: %w", err)
	}

	if item := page.tikTokItem(); item != nil {
		return tikTokPostFromItem(item, expanded, postID), nil
	}

	// OpenGraph fallback when the embedded JSON is absent.
	caption := page.meta["og:description"]
	post := &Post{
		Platform:  PlatformTikTok,
		PostID:    postID,
		URL:       expanded,
		Author:    Author{Username: tikTokUsername(page.meta["og:title"])},
		Content:   Content{Caption: caption, Hashtags: ExtractHashtags(caption), Mentions: ExtractMentions(caption)},
		Media:     Media{Type: "video", ThumbnailURL: page.meta["og:image"]},
		ScrapedAt: time.Now(),
	}
	post.Author.DisplayName = post.Author.Username
	if v := page.meta["og:video"]; v != "" {
		post.Media.MediaURLs = []string{v}
	}
	return post, nil
}

// expandShortURL resolves vm.tiktok.com share links to the canonical
// post URL by following redirects on a HEAD request. On any failure the
// original URL is returned and the GET deals with it.
func (s *Service) expandShortURL(ctx context.Context, url string) string {
	if !strings.Contains(strings.ToLower(url), "vm.tiktok.com") {
		return url
	}
	resp, err := s.client.R().SetContext(ctx).Head(url)
	if err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("short URL expansion failed")
		return url
	}
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		return raw.Request.URL.String()
	}
	return url
}

func tikTokPostFromItem(item *tikTokItemStruct, url, postID string) *Post {
	if postID == "" {
		postID = item.ID
	}
	post := &Post{
		Platform: PlatformTikTok,
		PostID:   postID,
		URL:      url,
		Author: Author{
			Username:     item.Author.UniqueID,
			DisplayName:  item.Author.Nickname,
			ProfileImage: item.Author.AvatarMedium,
			Verified:     item.Author.Verified,
		},
		Content: Content{
			Caption:  item.Desc,
			Hashtags: ExtractHashtags(item.Desc),
			Mentions: ExtractMentions(item.Desc),
		},
		Media: Media{
			Type:         "video",
			ThumbnailURL: item.Video.Cover,
			Duration:     item.Video.Duration,
		},
		Likes:     item.Stats.DiggCount,
		Comments:  item.Stats.CommentCount,
		Shares:    item.Stats.ShareCount,
		Views:     item.Stats.PlayCount,
		ScrapedAt: time.Now(),
	}
	if post.Author.ProfileImage == "" {
		post.Author.ProfileImage = item.Author.AvatarThumb
	}
	if item.Video.PlayAddr != "" {
		post.Media.MediaURLs = []string{item.Video.PlayAddr}
	}
	if item.CreateTime > 0 {
		t := time.Unix(item.CreateTime, 0)
		post.PostedAt = &t
	}
	return post
}

var (
	instagramPostIDRe = regexp.MustCompile(`/p/([A-Za-z0-9_-]+)`)
	tikTokPostIDRe    = regexp.MustCompile(`/video/(\d+)`)
	instagramTitleRe  = regexp.MustCompile(`^(.+?) on Instagram:`)
	tikTokTitleRe     = regexp.MustCompile(`@([^\s']+)`)
	hashtagRe         = regexp.MustCompile(`#[\w\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]+`)
	mentionRe         = regexp.MustCompile(`@[\w\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]+`)
)

func extractInstagramPostID(url string) string {
	if m := instagramPostIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func extractTikTokPostID(url string) string {
	if m := tikTokPostIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func instagramUsername(ogTitle string) string {
	if m := instagramTitleRe.FindStringSubmatch(ogTitle); m != nil {
		return m[1]
	}
	return ""
}

func tikTokUsername(ogTitle string) string {
	if m := tikTokTitleRe.FindStringSubmatch(ogTitle); m != nil {
		return m[1]
	}
	return ""
}

// ExtractHashtags returns hashtag bodies (no '#'), Japanese included.
func ExtractHashtags(text string) []string {
	return stripMarker(hashtagRe.FindAllString(text, -1))
}

// ExtractMentions returns mention bodies (no '@'), Japanese included.
func ExtractMentions(text string) []string {
	return stripMarker(mentionRe.FindAllString(text, -1))
}

func stripMarker(matches []string) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1:])
	}
	return out
}
