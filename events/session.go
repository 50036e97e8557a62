package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/codewandler/realtime-go/tool"
)

type AudioFormat string

const (
	AudioFormatPCM16    AudioFormat = "pcm16"
	AudioFormatG711ULaw AudioFormat = "g711_ulaw"
	AudioFormatG711ALaw AudioFormat = "g711_alaw"
)

// Valid reports whether f is one of the known wire formats.
func (f AudioFormat) Valid() bool {
	switch f {
	case AudioFormatPCM16, AudioFormatG711ULaw, AudioFormatG711ALaw:
		return true
	}
	return false
}

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

type Voice string

const (
	VoiceAlloy   Voice = "alloy"
	VoiceAsh     Voice = "ash"
	VoiceBallad  Voice = "ballad"
	VoiceCoral   Voice = "coral"
	VoiceEcho    Voice = "echo"
	VoiceSage    Voice = "sage"
	VoiceShimmer Voice = "shimmer"
	VoiceVerse   Voice = "verse"
)

type TurnDetectionType string

const (
	TurnDetectionServerVAD   TurnDetectionType = "server_vad"
	TurnDetectionSemanticVAD TurnDetectionType = "semantic_vad"
	// TurnDetectionNone is never sent as a type: it encodes as JSON null.
	TurnDetectionNone TurnDetectionType = "none"
)

type Eagerness string

const (
	EagernessLow    Eagerness = "low"
	EagernessMedium Eagerness = "medium"
	EagernessHigh   Eagerness = "high"
	EagernessAuto   Eagerness = "auto"
)

// TurnDetection holds the VAD configuration.
type TurnDetection struct {
	Type              TurnDetectionType `json:"type"`
	Threshold         *float64          `json:"threshold,omitempty"`
	PrefixPaddingMs   *int              `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs *int              `json:"silence_duration_ms,omitempty"`
	Eagerness         Eagerness         `json:"eagerness,omitempty"`
	CreateResponse    *bool             `json:"create_response,omitempty"`
	InterruptResponse *bool             `json:"interrupt_response,omitempty"`
}

func (t TurnDetection) MarshalJSON() ([]byte, error) {
	if t.Type == TurnDetectionNone {
		return []byte("null"), nil
	}
	type alias TurnDetection
	return json.Marshal(alias(t))
}

// ServerVAD returns server-side voice activity detection.
func ServerVAD(threshold float64, prefixPaddingMs, silenceDurationMs int) *TurnDetection {
	return &TurnDetection{
		Type:              TurnDetectionServerVAD,
		Threshold:         &threshold,
		PrefixPaddingMs:   &prefixPaddingMs,
		SilenceDurationMs: &silenceDurationMs,
	}
}

// SemanticVAD returns eagerness based turn detection.
func SemanticVAD(eagerness Eagerness) *TurnDetection {
	return &TurnDetection{
		Type:      TurnDetectionSemanticVAD,
		Eagerness: eagerness,
	}
}

// NoTurnDetection disables turn detection; the client commits the input
// buffer and requests responses itself.
func NoTurnDetection() *TurnDetection {
	return &TurnDetection{Type: TurnDetectionNone}
}

// MaxTokens bounds the output length. MaxTokensInf encodes as "inf".
type MaxTokens int

const MaxTokensInf MaxTokens = -1

func (m MaxTokens) MarshalJSON() ([]byte, error) {
	if m == MaxTokensInf {
		return []byte(`"inf"`), nil
	}
	return []byte(strconv.Itoa(int(m))), nil
}

func (m *MaxTokens) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == `"inf"` || string(data) == "null" {
		*m = MaxTokensInf
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("max tokens: %w", err)
	}
	*m = MaxTokens(n)
	return nil
}

// Transcription configures transcription of the input audio.
type Transcription struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`

	disabled bool
}

// NoTranscription turns input transcription off.
func NoTranscription() *Transcription {
	return &Transcription{disabled: true}
}

func (t Transcription) MarshalJSON() ([]byte, error) {
	if t.disabled {
		return []byte("null"), nil
	}
	type alias Transcription
	return json.Marshal(alias(t))
}

type NoiseReduction struct {
	Type string `json:"type"`
}

// SessionUpdate is the sparse configuration sent with session.update.
// Nil fields are omitted and stay unchanged on the server; a pointer to the
// zero value (e.g. Ptr("")) clears the field explicitly.
type SessionUpdate struct {
	Modalities              []Modality      `json:"modalities,omitzero"`
	Instructions            *string         `json:"instructions,omitempty"`
	Voice                   *Voice          `json:"voice,omitempty"`
	InputAudioFormat        *AudioFormat    `json:"input_audio_format,omitempty"`
	OutputAudioFormat       *AudioFormat    `json:"output_audio_format,omitempty"`
	InputAudioTranscription *Transcription  `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection  `json:"turn_detection,omitempty"`
	Tools                   []tool.Tool     `json:"tools,omitzero"`
	ToolChoice              *tool.Choice    `json:"tool_choice,omitempty"`
	Temperature             *float64        `json:"temperature,omitempty"`
	MaxResponseOutputTokens *MaxTokens      `json:"max_response_output_tokens,omitempty"`
	Speed                   *float64        `json:"speed,omitempty"`
	NoiseReduction          *NoiseReduction `json:"input_audio_noise_reduction,omitempty"`
}

// Merge overlays every field set in o onto u.
func (u SessionUpdate) Merge(o SessionUpdate) SessionUpdate {
	if o.Modalities != nil {
		u.Modalities = o.Modalities
	}
	if o.Instructions != nil {
		u.Instructions = o.Instructions
	}
	if o.Voice != nil {
		u.Voice = o.Voice
	}
	if o.InputAudioFormat != nil {
		u.InputAudioFormat = o.InputAudioFormat
	}
	if o.OutputAudioFormat != nil {
		u.OutputAudioFormat = o.OutputAudioFormat
	}
	if o.InputAudioTranscription != nil {
		u.InputAudioTranscription = o.InputAudioTranscription
	}
	if o.TurnDetection != nil {
		u.TurnDetection = o.TurnDetection
	}
	if o.Tools != nil {
		u.Tools = o.Tools
	}
	if o.ToolChoice != nil {
		u.ToolChoice = o.ToolChoice
	}
	if o.Temperature != nil {
		u.Temperature = o.Temperature
	}
	if o.MaxResponseOutputTokens != nil {
		u.MaxResponseOutputTokens = o.MaxResponseOutputTokens
	}
	if o.Speed != nil {
		u.Speed = o.Speed
	}
	if o.NoiseReduction != nil {
		u.NoiseReduction = o.NoiseReduction
	}
	return u
}

// Empty reports whether the update carries no field at all.
func (u SessionUpdate) Empty() bool {
	return u.Modalities == nil && u.Instructions == nil && u.Voice == nil &&
		u.InputAudioFormat == nil && u.OutputAudioFormat == nil &&
		u.InputAudioTranscription == nil && u.TurnDetection == nil &&
		u.Tools == nil && u.ToolChoice == nil && u.Temperature == nil &&
		u.MaxResponseOutputTokens == nil && u.Speed == nil && u.NoiseReduction == nil
}

// Session is the effective configuration echoed by the server.
type Session struct {
	ID                       string          `json:"id"`
	Object                   string          `json:"object"`
	Model                    string          `json:"model"`
	ExpiresAt                int64           `json:"expires_at"`
	Modalities               []Modality      `json:"modalities"`
	Instructions             string          `json:"instructions"`
	Voice                    Voice           `json:"voice"`
	InputAudioFormat         AudioFormat     `json:"input_audio_format"`
	OutputAudioFormat        AudioFormat     `json:"output_audio_format"`
	InputAudioTranscription  *Transcription  `json:"input_audio_transcription"`
	InputAudioNoiseReduction *NoiseReduction `json:"input_audio_noise_reduction"`
	TurnDetection            *TurnDetection  `json:"turn_detection"`
	Tools                    []tool.Tool     `json:"tools"`
	ToolChoice               tool.Choice     `json:"tool_choice"`
	Temperature              float64         `json:"temperature"`
	MaxResponseOutputTokens  MaxTokens       `json:"max_response_output_tokens"`
	Speed                    float64         `json:"speed"`
}
