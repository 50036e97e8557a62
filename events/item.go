package events

type ItemType string

const (
	ItemTypeMessage            ItemType = "message"
	ItemTypeFunctionCall       ItemType = "function_call"
	ItemTypeFunctionCallOutput ItemType = "function_call_output"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ItemStatus string

const (
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusIncomplete ItemStatus = "incomplete"
)

type ContentType string

const (
	ContentTypeInputText     ContentType = "input_text"
	ContentTypeInputAudio    ContentType = "input_audio"
	ContentTypeItemReference ContentType = "item_reference"
	ContentTypeText          ContentType = "text"
	ContentTypeAudio         ContentType = "audio"
)

// ConversationItem is one turn in the conversation history.
type ConversationItem struct {
	ID        string        `json:"id,omitempty"`
	Object    string        `json:"object,omitempty"`
	Type      ItemType      `json:"type"`
	Status    ItemStatus    `json:"status,omitempty"`
	Role      Role          `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

// ContentPart is a single part of a message item.
type ContentPart struct {
	Type       ContentType `json:"type"`
	Text       string      `json:"text,omitempty"`
	Audio      string      `json:"audio,omitempty"` // base64
	Transcript string      `json:"transcript,omitempty"`
	ID         string      `json:"id,omitempty"` // item_reference target
}

// UserText builds a user message item with a single input_text part.
func UserText(text string) ConversationItem {
	return ConversationItem{
		Type:    ItemTypeMessage,
		Role:    RoleUser,
		Content: []ContentPart{{Type: ContentTypeInputText, Text: text}},
	}
}

// FunctionOutput builds the item answering a function call.
func FunctionOutput(callID, output string) ConversationItem {
	return ConversationItem{
		Type:   ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: output,
	}
}
