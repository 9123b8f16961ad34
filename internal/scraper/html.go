package scraper

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// page is the parsed form of a post page: OpenGraph meta tags plus the
// platform-specific embedded payloads the parsers care about.
type page struct {
	meta         map[string]string
	locationName string
	nextData     []byte
}

func parsePage(body []byte) (*page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p := &page{meta: make(map[string]string)}
	p.walk(doc)
	return p, nil
}

func (p *page) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			if prop := attrVal(n, "property"); prop != "" {
				if _, seen := p.meta[prop]; !seen {
					p.meta[prop] = attrVal(n, "content")
				}
			}
		case "a":
			if p.locationName == "" && strings.Contains(attrVal(n, "href"), "/explore/locations/") {
				p.locationName = strings.TrimSpace(textContent(n))
			}
		case "script":
			if attrVal(n, "id") == "__NEXT_DATA__" && n.FirstChild != nil {
				p.nextData = []byte(n.FirstChild.Data)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(m *html.Node) {
		if m.Type == html.TextNode {
			b.WriteString(m.Data)
		}
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// tikTokItemStruct mirrors the post payload TikTok embeds in its
// __NEXT_DATA__ script.
type tikTokItemStruct struct {
	ID         string `json:"id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"createTime"`
	Author     struct {
		UniqueID     string `json:"uniqueId"`
		Nickname     string `json:"nickname"`
		AvatarMedium string `json:"avatarMedium"`
		AvatarThumb  string `json:"avatarThumb"`
		Verified     bool   `json:"verified"`
	} `json:"author"`
	Video struct {
		Cover    string `json:"cover"`
		PlayAddr string `json:"playAddr"`
		Duration int64  `json:"duration"`
	} `json:"video"`
	Stats struct {
		DiggCount    int64 `json:"diggCount"`
		CommentCount int64 `json:"commentCount"`
		ShareCount   int64 `json:"shareCount"`
		PlayCount    int64 `json:"playCount"`
	} `json:"stats"`
}

// tikTokItem extracts the post struct from the embedded payload, or nil
// when the page carries none.
func (p *page) tikTokItem() *tikTokItemStruct {
	if len(p.nextData) == 0 {
		return nil
	}
	var envelope struct {
		Props struct {
			PageProps struct {
				ItemInfo struct {
					ItemStruct *tikTokItemStruct `json:"itemStruct"`
				} `json:"itemInfo"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(p.nextData, &envelope); err != nil {
		return nil
	}
	return envelope.Props.PageProps.ItemInfo.ItemStruct
}
