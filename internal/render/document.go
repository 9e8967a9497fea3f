package render

import "github.com/knowsee/knowsee/internal/message"

type documentData struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

func (r *Registry) createDocument(part message.Part) *View {
	return r.document(part, "Error creating document: ", false)
}

func (r *Registry) updateDocument(part message.Part) *View {
	return r.document(part, "Error updating document: ", true)
}

func (r *Registry) document(part message.Part, errorPrefix string, update bool) *View {
	if reason, failed := toolFailure(part); failed {
		return failureView(KindDocument, part, errorPrefix, reason)
	}
	view := &View{Kind: KindDocument, ToolCallID: part.ToolCallID, Loading: message.IsLoading(part.ToolState)}
	if update {
		view.Badge = "Updated"
	}
	if doc, ok := decodeOutput[documentData](part); ok {
		view.Title = doc.Title
		view.Detail = doc.Kind
		return view
	}
	view.Skeleton = view.Loading
	if in, ok := decodeInput[documentData](part); ok {
		view.Title = in.Title
		view.Detail = in.Kind
	}
	return view
}

type suggestionsOutput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

func (r *Registry) requestSuggestions(part message.Part) *View {
	view := &View{
		Kind:       KindSuggestions,
		ToolCallID: part.ToolCallID,
		Title:      "Request suggestions",
		Loading:    message.IsLoading(part.ToolState),
	}
	switch part.ToolState {
	case message.StateInputAvailable:
		view.Input = append(view.Input, part.Input...)
	case message.StateOutputAvailable:
		if reason, failed := toolFailure(part); failed {
			view.Failed = true
			view.Error = "Error: " + reason
			return view
		}
		if out, ok := decodeOutput[suggestionsOutput](part); ok && out.Title != "" {
			view.Detail = `Added suggestions to "` + out.Title + `"`
		} else {
			view.Detail = "Added suggestions"
		}
	case message.StateOutputError, message.StateOutputDenied:
		reason, _ := toolFailure(part)
		view.Failed = true
		view.Error = "Error: " + reason
	}
	return view
}
