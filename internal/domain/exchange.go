package domain

// ToolCall records one tool invocation the assistant performed while
// answering a message.
type ToolCall struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     map[string]any `json:"result"`
}

// ExchangeResult is the outcome of one request/response cycle with the
// assistant. A result either carries a response or an error, never both.
type ExchangeResult struct {
	ConversationID ConversationID
	Response       string
	ToolCalls      []ToolCall
	Err            string
}

// Failed reports whether the exchange failed.
func (r ExchangeResult) Failed() bool {
	return r.Err != ""
}

// FailedExchange builds a failure result that keeps the conversation the
// request was sent for.
func FailedExchange(conversation ConversationID, msg string) ExchangeResult {
	return ExchangeResult{ConversationID: conversation, Err: msg}
}
