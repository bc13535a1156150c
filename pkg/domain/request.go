package domain

import "time"

// RequestKind defines which modal a front end must render.
type RequestKind string

const (
	// RequestDialog asks to continue or end. Answer with ReplyContinue or ReplyEnd.
	RequestDialog RequestKind = "dialog"
	// RequestSingleChoice asks for one option. Answer with ReplyChoose.
	RequestSingleChoice RequestKind = "single_choice"
	// RequestMultiChoice asks for one option or continue, and is repeated until continue.
	RequestMultiChoice RequestKind = "multi_choice"
	// RequestText asks for a free-text command. Answer with ReplySubmit.
	RequestText RequestKind = "text"
)

// Request is a decision the executor escalates to a human.
type Request struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id,omitempty"`
	Kind      RequestKind  `json:"kind"`
	Message   string       `json:"message,omitempty"`
	Options   []string     `json:"options,omitempty"`
	Default   DialogChoice `json:"default,omitempty"`
	StepIndex int          `json:"step_index"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReplyAction is what the human did with a Request.
type ReplyAction string

const (
	ReplyContinue ReplyAction = "continue"
	ReplyEnd      ReplyAction = "end"
	ReplyChoose   ReplyAction = "choose"
	ReplySubmit   ReplyAction = "submit"
	ReplyCancel   ReplyAction = "cancel"
)

// Reply answers a Request. Choice indexes Request.Options for ReplyChoose; Text carries ReplySubmit.
type Reply struct {
	Action ReplyAction `json:"action"`
	Choice int         `json:"choice,omitempty"`
	Text   string      `json:"text,omitempty"`
}

func ContinueReply() Reply          { return Reply{Action: ReplyContinue} }
func EndReply() Reply               { return Reply{Action: ReplyEnd} }
func CancelReply() Reply            { return Reply{Action: ReplyCancel} }
func ChooseReply(index int) Reply   { return Reply{Action: ReplyChoose, Choice: index} }
func SubmitReply(text string) Reply { return Reply{Action: ReplySubmit, Text: text} }

// DefaultReply is what a front end answers when it cannot ask anyone.
func (r Request) DefaultReply() Reply {
	switch r.Kind {
	case RequestDialog:
		if r.Default == DialogEnd {
			return EndReply()
		}
		return ContinueReply()
	case RequestMultiChoice:
		return ContinueReply()
	}
	return CancelReply()
}
