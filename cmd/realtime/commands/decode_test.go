package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/codewandler/realtime-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStream(t *testing.T) {
	in := strings.Join([]string{
		`{"type":"session.created","event_id":"evt_1","session":{"id":"sess_1"}}`,
		``,
		`{"type":"response.text.delta","event_id":"evt_2","response_id":"resp_1","item_id":"item_1","output_index":0,"content_index":0,"delta":"Hi"}`,
		`{"type":"response.unknown","event_id":"evt_3"}`,
		`{"type":"error","event_id":"evt_4","error":{"type":"invalid_request_error","code":"invalid_value","message":"bad voice"}}`,
		`not json`,
	}, "\n")

	var out bytes.Buffer
	stats, err := decodeStream(strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, decodeStats{ok: 3, bad: 2}, stats)

	text := out.String()
	assert.Contains(t, text, "evt_1")
	assert.Contains(t, text, "resp_1/item_1/0/0")
	assert.Contains(t, text, "invalid_value: bad voice")
	assert.Contains(t, text, "line 4:")
	assert.Contains(t, text, "line 6:")
}

func TestDecodeCommand_ReportsUndecodable(t *testing.T) {
	var out bytes.Buffer
	cmd := Command()
	cmd.SetArgs([]string{"decode", "-"})
	cmd.SetIn(strings.NewReader(`{"type":"nope"}` + "\n"))
	cmd.SetOut(&out)

	err := cmd.Execute()
	require.ErrorContains(t, err, "1 of 1 lines could not be decoded")
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, &events.ResponseAudioTranscriptDoneEvent{Transcript: "Hello there"})
	printEvent(&out, &events.InputAudioTranscriptionCompletedEvent{Transcript: " hi \n"})
	printEvent(&out, events.NewConnectionClosedEvent(nil))

	text := out.String()
	assert.Contains(t, text, "Hello there")
	assert.Contains(t, text, "hi")
	assert.NotContains(t, text, "connection closed")
}
