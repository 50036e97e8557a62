package events

import "github.com/codewandler/realtime-go/tool"

type ResponseStatus string

const (
	ResponseStatusInProgress ResponseStatus = "in_progress"
	ResponseStatusCompleted  ResponseStatus = "completed"
	ResponseStatusCancelled  ResponseStatus = "cancelled"
	ResponseStatusFailed     ResponseStatus = "failed"
	ResponseStatusIncomplete ResponseStatus = "incomplete"
)

// Terminal reports whether no further transition is possible.
func (s ResponseStatus) Terminal() bool {
	switch s {
	case ResponseStatusCompleted, ResponseStatusCancelled, ResponseStatusFailed, ResponseStatusIncomplete:
		return true
	}
	return false
}

// Response is a server-side generation cycle.
type Response struct {
	ID             string             `json:"id"`
	Object         string             `json:"object"`
	Status         ResponseStatus     `json:"status"`
	StatusDetails  *StatusDetails     `json:"status_details"`
	Output         []ConversationItem `json:"output"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Usage          *Usage             `json:"usage"`
}

// InProgress reports whether the response may still produce output.
func (r *Response) InProgress() bool {
	return r != nil && r.Status == ResponseStatusInProgress
}

type StatusDetails struct {
	Type   string       `json:"type"`
	Reason string       `json:"reason,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

type Usage struct {
	TotalTokens        int                `json:"total_tokens"`
	InputTokens        int                `json:"input_tokens"`
	OutputTokens       int                `json:"output_tokens"`
	InputTokenDetails  InputTokenDetails  `json:"input_token_details"`
	OutputTokenDetails OutputTokenDetails `json:"output_token_details"`
}

type InputTokenDetails struct {
	CachedTokens int `json:"cached_tokens"`
	TextTokens   int `json:"text_tokens"`
	AudioTokens  int `json:"audio_tokens"`
}

type OutputTokenDetails struct {
	TextTokens  int `json:"text_tokens"`
	AudioTokens int `json:"audio_tokens"`
}

// ResponseCreatePayload overrides session settings for a single response.
type ResponseCreatePayload struct {
	Modalities        []Modality         `json:"modalities,omitempty"`
	Instructions      string             `json:"instructions,omitempty"`
	Voice             Voice              `json:"voice,omitempty"`
	OutputAudioFormat AudioFormat        `json:"output_audio_format,omitempty"`
	Tools             []tool.Tool        `json:"tools,omitempty"`
	ToolChoice        tool.Choice        `json:"tool_choice,omitempty"`
	Temperature       *float64           `json:"temperature,omitempty"`
	MaxOutputTokens   *MaxTokens         `json:"max_output_tokens,omitempty"`
	Conversation      string             `json:"conversation,omitempty"`
	Input             []ConversationItem `json:"input,omitempty"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
}
