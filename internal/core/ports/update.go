package ports

// UpdateInput is one normalized inbound chat update delivered by the platform
// adapter: either free text (possibly a /command) or an inline button press.
// The adapter guarantees per-user arrival order.
type UpdateInput struct {
	UpdateID    int64
	UserID      int64
	ChatID      int64
	DisplayName string
	Text        string
	Callback    string
}
