package ui

import tea "github.com/charmbracelet/bubbletea"

// FullscreenChangedMsg announces the fullscreen holder after a change.
// Owner is empty when nothing is fullscreen.
type FullscreenChangedMsg struct {
	Owner string
}

type fullscreenRequestMsg struct {
	id    string
	enter bool
}

// FullscreenHost hands out the single fullscreen token. Viewports ask for it
// with Request and give it back with Exit; both are asynchronous, and the
// outcome arrives as a FullscreenChangedMsg. A request made while another
// viewport holds the token is dropped without reply.
type FullscreenHost struct {
	owner string
}

// Owner returns the id holding fullscreen, or "".
func (h *FullscreenHost) Owner() string {
	if h == nil {
		return ""
	}
	return h.owner
}

// Request asks for fullscreen on behalf of id.
func (h *FullscreenHost) Request(id string) tea.Cmd {
	return func() tea.Msg { return fullscreenRequestMsg{id: id, enter: true} }
}

// Exit gives fullscreen back on behalf of id.
func (h *FullscreenHost) Exit(id string) tea.Cmd {
	return func() tea.Msg { return fullscreenRequestMsg{id: id, enter: false} }
}

// Release drops the token without a request round trip, used when the
// holder goes away.
func (h *FullscreenHost) Release(id string) tea.Cmd {
	if h == nil || h.owner == "" || h.owner != id {
		return nil
	}
	h.owner = ""
	return func() tea.Msg { return FullscreenChangedMsg{} }
}

func (h *FullscreenHost) forget(id string) {
	if h != nil && h.owner == id {
		h.owner = ""
	}
}

func (h *FullscreenHost) handle(msg fullscreenRequestMsg) tea.Cmd {
	if msg.enter {
		if h.owner != "" {
			return nil
		}
		h.owner = msg.id
	} else {
		if h.owner != msg.id {
			return nil
		}
		h.owner = ""
	}
	owner := h.owner
	return func() tea.Msg { return FullscreenChangedMsg{Owner: owner} }
}
