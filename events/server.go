package events

import (
	"encoding/base64"
	"fmt"
)

// Server event types.
const (
	TypeError = "error"

	TypeSessionCreated = "session.created"
	TypeSessionUpdated = "session.updated"

	TypeConversationCreated                = "conversation.created"
	TypeConversationItemCreated            = "conversation.item.created"
	TypeConversationItemRetrieved          = "conversation.item.retrieved"
	TypeConversationItemTruncated          = "conversation.item.truncated"
	TypeConversationItemDeleted            = "conversation.item.deleted"
	TypeInputAudioTranscriptionDelta       = "conversation.item.input_audio_transcription.delta"
	TypeInputAudioTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	TypeInputAudioTranscriptionFailed      = "conversation.item.input_audio_transcription.failed"
	TypeInputAudioBufferCommitted          = "input_audio_buffer.committed"
	TypeInputAudioBufferCleared            = "input_audio_buffer.cleared"
	TypeInputAudioBufferSpeechStarted      = "input_audio_buffer.speech_started"
	TypeInputAudioBufferSpeechStopped      = "input_audio_buffer.speech_stopped"
	TypeResponseCreated                    = "response.created"
	TypeResponseDone                       = "response.done"
	TypeResponseOutputItemAdded            = "response.output_item.added"
	TypeResponseOutputItemDone             = "response.output_item.done"
	TypeResponseContentPartAdded           = "response.content_part.added"
	TypeResponseContentPartDone            = "response.content_part.done"
	TypeResponseTextDelta                  = "response.text.delta"
	TypeResponseTextDone                   = "response.text.done"
	TypeResponseAudioTranscriptDelta       = "response.audio_transcript.delta"
	TypeResponseAudioTranscriptDone        = "response.audio_transcript.done"
	TypeResponseAudioDelta                 = "response.audio.delta"
	TypeResponseAudioDone                  = "response.audio.done"
	TypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	TypeResponseFunctionCallArgumentsDone  = "response.function_call_arguments.done"
	TypeRateLimitsUpdated                  = "rate_limits.updated"
	TypeConnectionClosed                   = "client.connection_closed"
)

// ErrorDetail holds the details of the error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	EventID string `json:"event_id"`
}

func (e *ErrorDetail) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type ErrorEvent struct {
	BaseEvent
	ErrorDetail ErrorDetail `json:"error"`
}

func (e *ErrorEvent) Error() string {
	return e.ErrorDetail.Error()
}

type SessionCreatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type SessionUpdatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type Conversation struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

type ConversationCreatedEvent struct {
	BaseEvent
	Conversation Conversation `json:"conversation"`
}

type ConversationItemCreatedEvent struct {
	BaseEvent
	PreviousItemID *string          `json:"previous_item_id"`
	Item           ConversationItem `json:"item"`
}

type ConversationItemRetrievedEvent struct {
	BaseEvent
	Item ConversationItem `json:"item"`
}

type ConversationItemTruncatedEvent struct {
	BaseEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

type ConversationItemDeletedEvent struct {
	BaseEvent
	ItemID string `json:"item_id"`
}

type InputAudioTranscriptionDeltaEvent struct {
	BaseEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

type InputAudioTranscriptionCompletedEvent struct {
	BaseEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

type InputAudioTranscriptionFailedEvent struct {
	BaseEvent
	ItemID       string      `json:"item_id"`
	ContentIndex int         `json:"content_index"`
	Error        ErrorDetail `json:"error"`
}

type InputAudioBufferCommittedEvent struct {
	BaseEvent
	PreviousItemID *string `json:"previous_item_id"`
	ItemID         string  `json:"item_id"`
}

type InputAudioBufferClearedEvent struct {
	BaseEvent
}

type SpeechStartedEvent struct {
	BaseEvent
	AudioStartMs int    `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

type SpeechStoppedEvent struct {
	BaseEvent
	AudioEndMs int    `json:"audio_end_ms"`
	ItemID     string `json:"item_id"`
}

type ResponseCreatedEvent struct {
	BaseEvent
	Response Response `json:"response"`
}

type ResponseDoneEvent struct {
	BaseEvent
	Response Response `json:"response"`
}

type ResponseOutputItemAddedEvent struct {
	BaseEvent
	ResponseID  string           `json:"response_id"`
	OutputIndex int              `json:"output_index"`
	Item        ConversationItem `json:"item"`
}

type ResponseOutputItemDoneEvent struct {
	BaseEvent
	ResponseID  string           `json:"response_id"`
	OutputIndex int              `json:"output_index"`
	Item        ConversationItem `json:"item"`
}

// ContentKey identifies one streamed content part. Every delta and its
// matching done event carry the same key.
type ContentKey struct {
	ResponseID   string
	ItemID       string
	OutputIndex  int
	ContentIndex int
}

func (k ContentKey) String() string {
	return fmt.Sprintf("%s/%s/%d/%d", k.ResponseID, k.ItemID, k.OutputIndex, k.ContentIndex)
}

// ContentRef is the coordinate embedded in content stream events.
type ContentRef struct {
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
}

func (r *ContentRef) Key() ContentKey {
	return ContentKey{
		ResponseID:   r.ResponseID,
		ItemID:       r.ItemID,
		OutputIndex:  r.OutputIndex,
		ContentIndex: r.ContentIndex,
	}
}

// Keyed is implemented by events that belong to a content stream.
type Keyed interface {
	Key() ContentKey
}

type ResponseContentPartAddedEvent struct {
	BaseEvent
	ContentRef
	Part ContentPart `json:"part"`
}

type ResponseContentPartDoneEvent struct {
	BaseEvent
	ContentRef
	Part ContentPart `json:"part"`
}

type ResponseTextDeltaEvent struct {
	BaseEvent
	ContentRef
	Delta string `json:"delta"`
}

type ResponseTextDoneEvent struct {
	BaseEvent
	ContentRef
	Text string `json:"text"`
}

type ResponseAudioTranscriptDeltaEvent struct {
	BaseEvent
	ContentRef
	Delta string `json:"delta"`
}

type ResponseAudioTranscriptDoneEvent struct {
	BaseEvent
	ContentRef
	Transcript string `json:"transcript"`
}

type ResponseAudioDeltaEvent struct {
	BaseEvent
	ContentRef
	Delta string `json:"delta"` // base64 encoded wire audio
}

// Audio decodes the base64 payload.
func (e *ResponseAudioDeltaEvent) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Delta)
}

type ResponseAudioDoneEvent struct {
	BaseEvent
	ContentRef
}

type ResponseFunctionCallArgumentsDeltaEvent struct {
	BaseEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Delta       string `json:"delta"`
}

type ResponseFunctionCallArgumentsDoneEvent struct {
	BaseEvent
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Name        string `json:"name,omitempty"`
	Arguments   string `json:"arguments"`
}

func (e *ResponseFunctionCallArgumentsDeltaEvent) Key() ContentKey {
	return ContentKey{ResponseID: e.ResponseID, ItemID: e.ItemID, OutputIndex: e.OutputIndex}
}

func (e *ResponseFunctionCallArgumentsDoneEvent) Key() ContentKey {
	return ContentKey{ResponseID: e.ResponseID, ItemID: e.ItemID, OutputIndex: e.OutputIndex}
}

type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

type RateLimitsUpdatedEvent struct {
	BaseEvent
	RateLimits []RateLimit `json:"rate_limits"`
}

// ConnectionClosedEvent is produced locally when the connection is lost for
// good. It never appears on the wire.
type ConnectionClosedEvent struct {
	BaseEvent
	Err error `json:"-"`
}

// NewConnectionClosedEvent returns the local terminal event for err.
func NewConnectionClosedEvent(err error) *ConnectionClosedEvent {
	return &ConnectionClosedEvent{
		BaseEvent: NewBaseEvent(TypeConnectionClosed),
		Err:       err,
	}
}

func (*ErrorEvent) EventType() string                     { return TypeError }
func (*SessionCreatedEvent) EventType() string            { return TypeSessionCreated }
func (*SessionUpdatedEvent) EventType() string            { return TypeSessionUpdated }
func (*ConversationCreatedEvent) EventType() string       { return TypeConversationCreated }
func (*ConversationItemCreatedEvent) EventType() string   { return TypeConversationItemCreated }
func (*ConversationItemRetrievedEvent) EventType() string { return TypeConversationItemRetrieved }
func (*ConversationItemTruncatedEvent) EventType() string { return TypeConversationItemTruncated }
func (*ConversationItemDeletedEvent) EventType() string   { return TypeConversationItemDeleted }
func (*InputAudioTranscriptionDeltaEvent) EventType() string {
	return TypeInputAudioTranscriptionDelta
}
func (*InputAudioTranscriptionCompletedEvent) EventType() string {
	return TypeInputAudioTranscriptionCompleted
}
func (*InputAudioTranscriptionFailedEvent) EventType() string {
	return TypeInputAudioTranscriptionFailed
}
func (*InputAudioBufferCommittedEvent) EventType() string { return TypeInputAudioBufferCommitted }
func (*InputAudioBufferClearedEvent) EventType() string   { return TypeInputAudioBufferCleared }
func (*SpeechStartedEvent) EventType() string             { return TypeInputAudioBufferSpeechStarted }
func (*SpeechStoppedEvent) EventType() string             { return TypeInputAudioBufferSpeechStopped }
func (*ResponseCreatedEvent) EventType() string           { return TypeResponseCreated }
func (*ResponseDoneEvent) EventType() string              { return TypeResponseDone }
func (*ResponseOutputItemAddedEvent) EventType() string   { return TypeResponseOutputItemAdded }
func (*ResponseOutputItemDoneEvent) EventType() string    { return TypeResponseOutputItemDone }
func (*ResponseContentPartAddedEvent) EventType() string  { return TypeResponseContentPartAdded }
func (*ResponseContentPartDoneEvent) EventType() string   { return TypeResponseContentPartDone }
func (*ResponseTextDeltaEvent) EventType() string         { return TypeResponseTextDelta }
func (*ResponseTextDoneEvent) EventType() string          { return TypeResponseTextDone }
func (*ResponseAudioTranscriptDeltaEvent) EventType() string {
	return TypeResponseAudioTranscriptDelta
}
func (*ResponseAudioTranscriptDoneEvent) EventType() string {
	return TypeResponseAudioTranscriptDone
}
func (*ResponseAudioDeltaEvent) EventType() string { return TypeResponseAudioDelta }
func (*ResponseAudioDoneEvent) EventType() string  { return TypeResponseAudioDone }
func (*ResponseFunctionCallArgumentsDeltaEvent) EventType() string {
	return TypeResponseFunctionCallArgumentsDelta
}
func (*ResponseFunctionCallArgumentsDoneEvent) EventType() string {
	return TypeResponseFunctionCallArgumentsDone
}
func (*RateLimitsUpdatedEvent) EventType() string { return TypeRateLimitsUpdated }
func (*ConnectionClosedEvent) EventType() string  { return TypeConnectionClosed }

func (*ErrorEvent) serverEvent()                              {}
func (*SessionCreatedEvent) serverEvent()                     {}
func (*SessionUpdatedEvent) serverEvent()                     {}
func (*ConversationCreatedEvent) serverEvent()                {}
func (*ConversationItemCreatedEvent) serverEvent()            {}
func (*ConversationItemRetrievedEvent) serverEvent()          {}
func (*ConversationItemTruncatedEvent) serverEvent()          {}
func (*ConversationItemDeletedEvent) serverEvent()            {}
func (*InputAudioTranscriptionDeltaEvent) serverEvent()       {}
func (*InputAudioTranscriptionCompletedEvent) serverEvent()   {}
func (*InputAudioTranscriptionFailedEvent) serverEvent()      {}
func (*InputAudioBufferCommittedEvent) serverEvent()          {}
func (*InputAudioBufferClearedEvent) serverEvent()            {}
func (*SpeechStartedEvent) serverEvent()                      {}
func (*SpeechStoppedEvent) serverEvent()                      {}
func (*ResponseCreatedEvent) serverEvent()                    {}
func (*ResponseDoneEvent) serverEvent()                       {}
func (*ResponseOutputItemAddedEvent) serverEvent()            {}
func (*ResponseOutputItemDoneEvent) serverEvent()             {}
func (*ResponseContentPartAddedEvent) serverEvent()           {}
func (*ResponseContentPartDoneEvent) serverEvent()            {}
func (*ResponseTextDeltaEvent) serverEvent()                  {}
func (*ResponseTextDoneEvent) serverEvent()                   {}
func (*ResponseAudioTranscriptDeltaEvent) serverEvent()       {}
func (*ResponseAudioTranscriptDoneEvent) serverEvent()        {}
func (*ResponseAudioDeltaEvent) serverEvent()                 {}
func (*ResponseAudioDoneEvent) serverEvent()                  {}
func (*ResponseFunctionCallArgumentsDeltaEvent) serverEvent() {}
func (*ResponseFunctionCallArgumentsDoneEvent) serverEvent()  {}
func (*RateLimitsUpdatedEvent) serverEvent()                  {}
func (*ConnectionClosedEvent) serverEvent()                   {}

var serverEvents = map[string]func() ServerEvent{
	TypeError:                              func() ServerEvent { return new(ErrorEvent) },
	TypeSessionCreated:                     func() ServerEvent { return new(SessionCreatedEvent) },
	TypeSessionUpdated:                     func() ServerEvent { return new(SessionUpdatedEvent) },
	TypeConversationCreated:                func() ServerEvent { return new(ConversationCreatedEvent) },
	TypeConversationItemCreated:            func() ServerEvent { return new(ConversationItemCreatedEvent) },
	TypeConversationItemRetrieved:          func() ServerEvent { return new(ConversationItemRetrievedEvent) },
	TypeConversationItemTruncated:          func() ServerEvent { return new(ConversationItemTruncatedEvent) },
	TypeConversationItemDeleted:            func() ServerEvent { return new(ConversationItemDeletedEvent) },
	TypeInputAudioTranscriptionDelta:       func() ServerEvent { return new(InputAudioTranscriptionDeltaEvent) },
	TypeInputAudioTranscriptionCompleted:   func() ServerEvent { return new(InputAudioTranscriptionCompletedEvent) },
	TypeInputAudioTranscriptionFailed:      func() ServerEvent { return new(InputAudioTranscriptionFailedEvent) },
	TypeInputAudioBufferCommitted:          func() ServerEvent { return new(InputAudioBufferCommittedEvent) },
	TypeInputAudioBufferCleared:            func() ServerEvent { return new(InputAudioBufferClearedEvent) },
	TypeInputAudioBufferSpeechStarted:      func() ServerEvent { return new(SpeechStartedEvent) },
	TypeInputAudioBufferSpeechStopped:      func() ServerEvent { return new(SpeechStoppedEvent) },
	TypeResponseCreated:                    func() ServerEvent { return new(ResponseCreatedEvent) },
	TypeResponseDone:                       func() ServerEvent { return new(ResponseDoneEvent) },
	TypeResponseOutputItemAdded:            func() ServerEvent { return new(ResponseOutputItemAddedEvent) },
	TypeResponseOutputItemDone:             func() ServerEvent { return new(ResponseOutputItemDoneEvent) },
	TypeResponseContentPartAdded:           func() ServerEvent { return new(ResponseContentPartAddedEvent) },
	TypeResponseContentPartDone:            func() ServerEvent { return new(ResponseContentPartDoneEvent) },
	TypeResponseTextDelta:                  func() ServerEvent { return new(ResponseTextDeltaEvent) },
	TypeResponseTextDone:                   func() ServerEvent { return new(ResponseTextDoneEvent) },
	TypeResponseAudioTranscriptDelta:       func() ServerEvent { return new(ResponseAudioTranscriptDeltaEvent) },
	TypeResponseAudioTranscriptDone:        func() ServerEvent { return new(ResponseAudioTranscriptDoneEvent) },
	TypeResponseAudioDelta:                 func() ServerEvent { return new(ResponseAudioDeltaEvent) },
	TypeResponseAudioDone:                  func() ServerEvent { return new(ResponseAudioDoneEvent) },
	TypeResponseFunctionCallArgumentsDelta: func() ServerEvent { return new(ResponseFunctionCallArgumentsDeltaEvent) },
	TypeResponseFunctionCallArgumentsDone:  func() ServerEvent { return new(ResponseFunctionCallArgumentsDoneEvent) },
	TypeRateLimitsUpdated:                  func() ServerEvent { return new(RateLimitsUpdatedEvent) },
}
