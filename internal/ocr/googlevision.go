package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const googleVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

type googleVision struct {
	apiKey string
	client *resty.Client
}

func newGoogleVision(apiKey string) *googleVision {
	return &googleVision{
		apiKey: apiKey,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

type gvRequest struct {
	Requests []gvAnnotateRequest `json:"requests"`
}

type gvAnnotateRequest struct {
	Image        gvImage     `json:"image"`
	Features     []gvFeature `json:"features"`
	ImageContext gvContext   `json:"imageContext"`
}

type gvImage struct {
	Content string `json:"content"`
}

type gvFeature struct {
	Type string `json:"type"`
}

type gvContext struct {
	LanguageHints []string `json:"languageHints"`
}

type gvResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text  string `json:"text"`
			Pages []struct {
				Confidence float64 `json:"confidence"`
			} `json:"pages"`
		} `json:"fullTextAnnotation"`
		TextAnnotations []struct {
			Description string `json:"description"`
			Locale      string `json:"locale"`
		} `json:"textAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func (g *googleVision) run(ctx context.Context, img []byte) (*Result, error) {
	body := gvRequest{Requests: []gvAnnotateRequest{{
		Image: gvImage{Content: base64.StdEncoding.EncodeToString(img)},
		Features: []gvFeature{
			{Type: "TEXT_DETECTION"},
			{Type: "DOCUMENT_TEXT_DETECTION"},
		},
		ImageContext: gvContext{LanguageHints: []string{"ja", "en"}},
	}}}

	var out gvResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(googleVisionEndpoint)
	if err != nil {
		return nil, fmt.Errorf("annotate request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("annotate request: status %d", resp.StatusCode())
	}
	if len(out.Responses) == 0 {
		return nil, fmt.Errorf("annotate request: empty response")
	}
	r := out.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("annotate request: %s", r.Error.Message)
	}

	res := &Result{Language: "ja"}
	switch {
	case r.FullTextAnnotation != nil:
		res.Text = r.FullTextAnnotation.Text
		res.Confidence = 0.9
		if n := len(r.FullTextAnnotation.Pages); n > 0 {
			var sum float64
			for _, p := range r.FullTextAnnotation.Pages {
				sum += p.Confidence
			}
			res.Confidence = sum / float64(n)
		}
	case len(r.TextAnnotations) > 0:
		res.Text = r.TextAnnotations[0].Description
		res.Confidence = 0.85
		if loc := r.TextAnnotations[0].Locale; loc != "" {
			res.Language = loc
		}
	}
	return res, nil
}
