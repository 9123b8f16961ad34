package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	azureReadPath     = "/vision/v3.2/read/analyze"
	azurePollInterval = time.Second
	azureMaxPolls     = 10
)

// azureRead drives the Azure Computer Vision Read API. Analysis is
// asynchronous: submit returns an Operation-Location which is polled
// until the run reaches a terminal status.
type azureRead struct {
	endpoint string
	key      string
	client   *resty.Client
}

func newAzureRead(endpoint, key string) *azureRead {
	return &azureRead{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		client:   resty.New().SetTimeout(30 * time.Second),
	}
}

type azureReadResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Language string `json:"language"`
			Lines    []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

func (a *azureRead) run(ctx context.Context, img []byte) (*Result, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Ocp-Apim-Subscription-Key", a.key).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(img).
		Post(a.endpoint + azureReadPath)
	if err != nil {
		return nil, fmt.Errorf("submit read: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("submit read: status %d", resp.StatusCode())
	}
	opLocation := resp.Header().Get("Operation-Location")
	if opLocation == "" {
		return nil, fmt.Errorf("submit read: missing Operation-Location header")
	}

	for i := 0; i < azureMaxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(azurePollInterval):
		}

		var out azureReadResult
		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("Ocp-Apim-Subscription-Key", a.key).
			SetResult(&out).
			Get(opLocation)
		if err != nil {
			return nil, fmt.Errorf("poll read: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("poll read: status %d", resp.StatusCode())
		}

		switch out.Status {
		case "succeeded":
			return azureResult(&out), nil
		case "failed":
			return nil, fmt.Errorf("poll read: analysis failed")
		}
	}
	return nil, fmt.Errorf("poll read: not finished after %d polls", azureMaxPolls)
}

func azureResult(out *azureReadResult) *Result {
	res := &Result{Language: "ja", Confidence: 0.93}
	var lines []string
	for _, page := range out.AnalyzeResult.ReadResults {
		if page.Language != "" {
			res.Language = page.Language
		}
		for _, l := range page.Lines {
			lines = append(lines, l.Text)
		}
	}
	res.Text = strings.Join(lines, "\n")
	return res
}
