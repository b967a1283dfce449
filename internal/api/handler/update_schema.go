package handler

// updateRequest is one normalized chat update posted by the platform adapter.
// Exactly one of text and callback_data is expected to be meaningful; both
// empty is rejected.
type updateRequest struct {
	UpdateID    int64  `json:"update_id"    validate:"required"`
	UserID      int64  `json:"user_id"      validate:"required"`
	ChatID      int64  `json:"chat_id"      validate:"required"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	Callback    string `json:"callback_data"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}
