package widget

import "github.com/liliang-cn/folio/internal/domain"

// Surface renders the conversation and owns the input controls.
// ShowTurn, SetInputEnabled and ShowNotice are called with the session's
// state lock held and must not call back into the Session.
type Surface interface {
	// ShowTurn displays a finished message
	ShowTurn(turn domain.Turn)
	// BeginReply shows a placeholder for the bot's next message
	BeginReply() ReplyView
	// SetInputEnabled enables or disables the input box and send button
	SetInputEnabled(enabled bool)
	// ShowNotice displays a system notice such as the idle message
	ShowNotice(text string)
}

// ReplyView is the bot message being filled in
type ReplyView interface {
	// Append adds one streamed fragment, in arrival order
	Append(fragment string)
	// Replace sets the whole message text
	Replace(text string)
}
