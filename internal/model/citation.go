package model

type Citation struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Snippet string `json:"snippet,omitempty"`
}
