package service

import "github.com/mednat/tandem-extras/internal/biz"

type NavigateRequest struct {
	Path string `json:"path"`
}

type NavigateReply struct {
	PageType string `json:"page_type"`
	ID       string `json:"id,omitempty"`
}

type CardItem struct {
	Key      string `json:"key,omitempty"`
	ID       string `json:"id"`
	PhotoURL string `json:"photo_url"`
	Name     string `json:"name"`
	Hidden   bool   `json:"hidden,omitempty"`
}

type HighlightedItem struct {
	Key      string `json:"key,omitempty"`
	PhotoURL string `json:"photo_url"`
	Name     string `json:"name"`
	Hidden   bool   `json:"hidden,omitempty"`
}

type UpdateCardsRequest struct {
	Cards       []CardItem        `json:"cards"`
	Highlighted []HighlightedItem `json:"highlighted"`
}

type UpdateCardsReply struct {
	Presentations map[string]biz.Presentation `json:"presentations"`
}

type ToggleRevealRequest struct{}

type ToggleRevealReply struct {
	Changed  int  `json:"changed"`
	Revealed bool `json:"revealed"`
}

type ReportProfilePhotoRequest struct {
	ID       string `json:"id"`
	PhotoURL string `json:"photo_url"`
}

type ReportProfilePhotoReply struct{}

type ToggleBlocklistRequest struct {
	ID string `json:"id,omitempty"`
}

type ToggleBlocklistReply struct {
	ID      string `json:"id"`
	Blocked bool   `json:"blocked"`
}

type ListNotificationsRequest struct{}

type ListNotificationsReply struct {
	Notifications []biz.Notification `json:"notifications"`
}

type DiagnosticsRequest struct{}

type DiagnosticsReply struct {
	*biz.Report
	OK bool `json:"ok"`
}
