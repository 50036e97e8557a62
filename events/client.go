package events

// Client event types.
const (
	TypeSessionUpdate            = "session.update"
	TypeInputAudioBufferAppend   = "input_audio_buffer.append"
	TypeInputAudioBufferCommit   = "input_audio_buffer.commit"
	TypeInputAudioBufferClear    = "input_audio_buffer.clear"
	TypeConversationItemCreate   = "conversation.item.create"
	TypeConversationItemRetrieve = "conversation.item.retrieve"
	TypeConversationItemTruncate = "conversation.item.truncate"
	TypeConversationItemDelete   = "conversation.item.delete"
	TypeResponseCreate           = "response.create"
	TypeResponseCancel           = "response.cancel"
)

type SessionUpdateEvent struct {
	BaseEvent
	Session SessionUpdate `json:"session"`
}

type InputAudioBufferAppendEvent struct {
	BaseEvent
	Audio string `json:"audio"` // base64 encoded wire audio
}

type InputAudioBufferCommitEvent struct {
	BaseEvent
}

type InputAudioBufferClearEvent struct {
	BaseEvent
}

type ConversationItemCreateEvent struct {
	BaseEvent
	PreviousItemID string           `json:"previous_item_id,omitempty"`
	Item           ConversationItem `json:"item"`
}

type ConversationItemRetrieveEvent struct {
	BaseEvent
	ItemID string `json:"item_id"`
}

type ConversationItemTruncateEvent struct {
	BaseEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

type ConversationItemDeleteEvent struct {
	BaseEvent
	ItemID string `json:"item_id"`
}

type ResponseCreateEvent struct {
	BaseEvent
	Response *ResponseCreatePayload `json:"response,omitempty"`
}

type ResponseCancelEvent struct {
	BaseEvent
	ResponseID string `json:"response_id,omitempty"`
}

func (*SessionUpdateEvent) EventType() string            { return TypeSessionUpdate }
func (*InputAudioBufferAppendEvent) EventType() string   { return TypeInputAudioBufferAppend }
func (*InputAudioBufferCommitEvent) EventType() string   { return TypeInputAudioBufferCommit }
func (*InputAudioBufferClearEvent) EventType() string    { return TypeInputAudioBufferClear }
func (*ConversationItemCreateEvent) EventType() string   { return TypeConversationItemCreate }
func (*ConversationItemRetrieveEvent) EventType() string { return TypeConversationItemRetrieve }
func (*ConversationItemTruncateEvent) EventType() string { return TypeConversationItemTruncate }
func (*ConversationItemDeleteEvent) EventType() string   { return TypeConversationItemDelete }
func (*ResponseCreateEvent) EventType() string           { return TypeResponseCreate }
func (*ResponseCancelEvent) EventType() string           { return TypeResponseCancel }

func (*SessionUpdateEvent) clientEvent()            {}
func (*InputAudioBufferAppendEvent) clientEvent()   {}
func (*InputAudioBufferCommitEvent) clientEvent()   {}
func (*InputAudioBufferClearEvent) clientEvent()    {}
func (*ConversationItemCreateEvent) clientEvent()   {}
func (*ConversationItemRetrieveEvent) clientEvent() {}
func (*ConversationItemTruncateEvent) clientEvent() {}
func (*ConversationItemDeleteEvent) clientEvent()   {}
func (*ResponseCreateEvent) clientEvent()           {}
func (*ResponseCancelEvent) clientEvent()           {}

var clientEvents = map[string]func() ClientEvent{
	TypeSessionUpdate:            func() ClientEvent { return new(SessionUpdateEvent) },
	TypeInputAudioBufferAppend:   func() ClientEvent { return new(InputAudioBufferAppendEvent) },
	TypeInputAudioBufferCommit:   func() ClientEvent { return new(InputAudioBufferCommitEvent) },
	TypeInputAudioBufferClear:    func() ClientEvent { return new(InputAudioBufferClearEvent) },
	TypeConversationItemCreate:   func() ClientEvent { return new(ConversationItemCreateEvent) },
	TypeConversationItemRetrieve: func() ClientEvent { return new(ConversationItemRetrieveEvent) },
	TypeConversationItemTruncate: func() ClientEvent { return new(ConversationItemTruncateEvent) },
	TypeConversationItemDelete:   func() ClientEvent { return new(ConversationItemDeleteEvent) },
	TypeResponseCreate:           func() ClientEvent { return new(ResponseCreateEvent) },
	TypeResponseCancel:           func() ClientEvent { return new(ResponseCancelEvent) },
}
