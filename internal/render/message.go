package render

import "github.com/knowsee/knowsee/internal/message"

// MessageView is a rendered message. Thinking is set while an assistant turn
// is streaming and nothing visible has arrived yet.
type MessageView struct {
	ID                string       `json:"id"`
	Role              message.Role `json:"role"`
	Parts             []*View      `json:"parts"`
	Attachments       []*View      `json:"attachments,omitempty"`
	HasVisibleContent bool         `json:"hasVisibleContent"`
	Thinking          bool         `json:"thinking"`
}

func (r *Registry) RenderMessage(msg message.Message, streaming bool) MessageView {
	parts, visible := message.Normalize(msg.Parts, r)
	out := MessageView{
		ID:                msg.ID,
		Role:              msg.Role,
		Parts:             make([]*View, 0, len(parts)),
		HasVisibleContent: visible,
		Thinking:          streaming && msg.Role == message.RoleAssistant && !visible,
	}
	for _, part := range parts {
		view := r.Render(part)
		if view == nil {
			continue
		}
		if view.Kind == KindFile {
			out.Attachments = append(out.Attachments, view)
			continue
		}
		out.Parts = append(out.Parts, view)
	}
	return out
}
