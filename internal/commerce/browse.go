package commerce

import (
	"context"
	"encoding/base64"
	"strings"
)

const maxDescribedObservations = 5

type BrowseSiteInput struct {
	URL       string `json:"url" jsonschema:"The URL to navigate to"`
	Objective string `json:"objective" jsonschema:"What to look for on this page, e.g. 'find running shoe listings' or 'assess checkout flow'"`
}

// BrowseSite visits a page, screenshots it and summarises what the agent
// observes against the objective.
func (t *Tools) BrowseSite(ctx context.Context, in BrowseSiteInput) Result[BrowsingStepData] {
	return boundary(t, ToolBrowseSite, in.URL, "Unknown browsing error", func() (BrowsingStepData, error) {
		var step BrowsingStepData
		err := t.withSession(ctx, ToolBrowseSite, func(s Session) error {
			if err := s.Navigate(ctx, in.URL, NavigateOptions{WaitUntil: WaitDOMContentLoaded, Timeout: t.cfg.NavigateTimeout}); err != nil {
				return err
			}
			screenshot, err := t.screenshot(ctx, s)
			if err != nil {
				return err
			}
			observations, err := s.Observe(ctx, in.Objective)
			if err != nil {
				return err
			}
			title, err := s.Title(ctx)
			if err != nil {
				return err
			}

			hostname := HostnameOr(in.URL)
			siteName := title
			if siteName == "" {
				siteName = hostname
			}
			step = BrowsingStepData{
				URL:           in.URL,
				SiteName:      siteName,
				Favicon:       FaviconURL(t.cfg.FaviconService, hostname),
				Screenshot:    screenshot,
				Description:   describeObservations(observations, siteName),
				ProductsFound: countProductMentions(observations),
			}
			return nil
		})
		return step, err
	})
}

func (t *Tools) screenshot(ctx context.Context, s Session) (string, error) {
	shot, err := s.Screenshot(ctx, ScreenshotOptions{Type: ScreenshotJPEG, Quality: screenshotQuality})
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(shot), nil
}

func describeObservations(observations []Observation, siteName string) string {
	if len(observations) == 0 {
		return "Visited " + siteName + " — page loaded successfully."
	}
	if len(observations) > maxDescribedObservations {
		observations = observations[:maxDescribedObservations]
	}
	descriptions := make([]string, 0, len(observations))
	for _, o := range observations {
		descriptions = append(descriptions, o.Description)
	}
	return strings.Join(descriptions, "; ")
}

func countProductMentions(observations []Observation) int {
	count := 0
	for _, o := range observations {
		desc := strings.ToLower(o.Description)
		if strings.Contains(desc, "product") || strings.Contains(desc, "price") || strings.Contains(desc, "buy") {
			count++
		}
	}
	return count
}
