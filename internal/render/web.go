package render

import (
	"strconv"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/message"
)

const maxSearchResults = 10

type webSearchInput struct {
	Query string `json:"query"`
}

type webSearchResult struct {
	URL   string  `json:"url"`
	Title *string `json:"title"`
}

func (r *Registry) webSearch(part message.Part) *View {
	view := &View{
		Kind:       KindWebSearch,
		ToolCallID: part.ToolCallID,
		Loading:    message.IsLoading(part.ToolState),
		Title:      "Searching the web...",
	}
	if in, ok := decodeInput[webSearchInput](part); ok && in.Query != "" {
		view.Title = in.Query
	}
	if reason, failed := toolFailure(part); failed {
		view.Failed = true
		view.Error = reason
		return view
	}
	results, ok := decodeOutput[[]webSearchResult](part)
	if !ok {
		view.Skeleton = view.Loading
		return view
	}
	view.Badge = strconv.Itoa(len(results)) + plural(len(results), " result", " results")
	for _, res := range capItems(results, maxSearchResults) {
		item := Item{URL: res.URL, Title: res.URL}
		if host, ok := commerce.Hostname(res.URL); ok {
			item.Title = host
			item.Detail = host
			item.IconURL = commerce.FaviconURL(r.favicon, host)
		}
		if res.Title != nil && *res.Title != "" {
			item.Title = *res.Title
		}
		view.Items = append(view.Items, item)
	}
	return view
}

type webFetchInput struct {
	URL string `json:"url"`
}

func (r *Registry) webFetch(part message.Part) *View {
	target := "page"
	if in, ok := decodeInput[webFetchInput](part); ok && in.URL != "" {
		target = commerce.HostnameOr(in.URL)
	}
	view := &View{Kind: KindWebFetch, ToolCallID: part.ToolCallID, Loading: message.IsLoading(part.ToolState)}
	if view.Loading {
		view.Title = "Fetching " + target + "..."
	} else {
		view.Title = "Fetched " + target
	}
	if reason, failed := toolFailure(part); failed {
		view.Failed = true
		view.Error = reason
	}
	return view
}
