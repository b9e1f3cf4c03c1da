package models

// Page — описание страницы, которую рисует фронт (разметку BFF не отдаёт).
type Page struct {
	Page    string            `json:"page"`
	Params  map[string]string `json:"params,omitempty"`
	Session SessionResponse   `json:"session"`
}
