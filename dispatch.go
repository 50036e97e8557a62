package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/conn"
	"github.com/codewandler/realtime-go/events"
)

// ToolHandler runs a function call requested by the model. The result is
// sent back JSON encoded.
type ToolHandler func(name string, args map[string]any) (any, error)

// dispatch decodes inbound messages until the manager closes, then
// publishes the terminal ConnectionClosedEvent.
func (c *Client) dispatch(m *conn.Manager) {
	for data := range m.Messages() {
		evt, err := events.Decode(data)
		if err != nil {
			c.metrics.UndecodableMessages.Inc()
			c.logger.Error("failed to decode event", slog.Int("size", len(data)), slog.Any("err", err))
			if c.config.diagnostics != nil {
				c.config.diagnostics(data, err)
			}
			continue
		}

		c.logger.Debug("rcv", slog.String("type", evt.EventType()), slog.String("event_id", evt.ID()))
		c.apply(evt)
		c.subs.publish(evt)
	}

	err := m.Err()
	if err != nil {
		c.logger.Error("connection closed", slog.Any("err", err))
	}
	c.subs.publish(events.NewConnectionClosedEvent(err))
	c.closeOnce.Do(func() { close(c.closed) })
}

// apply updates the local mirror before subscribers see evt.
func (c *Client) apply(evt events.ServerEvent) {
	switch e := evt.(type) {
	case *events.ErrorEvent:
		c.metrics.ServerErrors.Inc()
		c.logger.Warn("server error",
			slog.String("code", e.ErrorDetail.Code),
			slog.String("message", e.ErrorDetail.Message),
			slog.String("event_id", e.ErrorDetail.EventID),
		)
		c.mu.Lock()
		if id := e.ErrorDetail.EventID; id != "" {
			if id == c.pendingCreate {
				c.pendingCreate = ""
			}
			if id == c.handshakeID {
				c.signalReady(e)
			}
		}
		c.mu.Unlock()

	case *events.SessionCreatedEvent:
		c.setSession(e.Session)
		c.mu.Lock()
		if c.handshakeID == "" {
			c.signalReady(nil)
		}
		c.mu.Unlock()

	case *events.SessionUpdatedEvent:
		c.setSession(e.Session)
		c.mu.Lock()
		c.signalReady(nil)
		c.mu.Unlock()

	case *events.ResponseCreatedEvent:
		c.mu.Lock()
		r := e.Response
		c.response = &r
		c.pendingCreate = ""
		c.mu.Unlock()

	case *events.ResponseDoneEvent:
		c.mu.Lock()
		r := e.Response
		c.response = &r
		c.mu.Unlock()
		c.deltas.dropResponse(r.ID)
		if c.config.toolHandler != nil {
			go c.runTools(r)
		}

	case *events.SpeechStartedEvent:
		if sink := c.config.playback; sink != nil {
			sink.Interrupt()
		}

	case *events.ResponseAudioDeltaEvent:
		if sink := c.config.playback; sink != nil {
			if err := sink.PlayBase64(e.Delta); err != nil {
				c.logger.Error("failed to play audio", slog.Any("err", err))
			}
		}

	case *events.ResponseTextDeltaEvent:
		c.deltas.append(e.Key(), e.Delta)
	case *events.ResponseTextDoneEvent:
		c.deltas.done(e.Key(), e.Text)
	case *events.ResponseAudioTranscriptDeltaEvent:
		c.deltas.append(e.Key(), e.Delta)
	case *events.ResponseAudioTranscriptDoneEvent:
		c.deltas.done(e.Key(), e.Transcript)
	case *events.ResponseFunctionCallArgumentsDeltaEvent:
		c.deltas.append(e.Key(), e.Delta)
	case *events.ResponseFunctionCallArgumentsDoneEvent:
		c.deltas.done(e.Key(), e.Arguments)
	}
}

func (c *Client) setSession(s events.Session) {
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()

	if sink := c.config.playback; sink != nil && s.OutputAudioFormat != "" {
		codec, err := audio.ParseCodec(string(s.OutputAudioFormat))
		if err != nil {
			c.logger.Error("unsupported output audio format", slog.Any("err", err))
			return
		}
		sink.SetCodec(codec)
	}
}

// signalReady reports the outcome of the configuration handshake to a
// waiting Connect. c.mu must be held.
func (c *Client) signalReady(err error) {
	select {
	case c.sessionReady <- err:
	default:
	}
}

// runTools answers every completed function call of r and asks for the
// follow-up response.
func (c *Client) runTools(r events.Response) {
	answered := 0
	for _, o := range r.Output {
		if o.Type != events.ItemTypeFunctionCall || o.Status != events.ItemStatusCompleted {
			continue
		}

		var args map[string]any
		if o.Arguments != "" {
			if err := json.Unmarshal([]byte(o.Arguments), &args); err != nil {
				c.logger.Error("invalid tool call arguments", slog.String("name", o.Name), slog.Any("err", err))
				continue
			}
		}

		res, err := c.config.toolHandler(o.Name, args)
		c.logger.Debug("tool call", slog.Any("name", o.Name), slog.Any("args", args), slog.Any("res", res), slog.Any("err", err))

		if err := c.SendFunctionOutput(o.CallID, toolOutput(res, err)); err != nil {
			c.logger.Error("failed to send tool output", slog.Any("err", err))
			return
		}
		answered++
	}

	if answered == 0 {
		return
	}
	if err := c.CreateResponse(nil); err != nil {
		c.logger.Warn("no follow-up response after tool call", slog.Any("err", err))
	}
}

func toolOutput(res any, err error) string {
	var v any
	switch {
	case err != nil:
		v = map[string]any{"error": err.Error()}
	case res != nil:
		v = res
	default:
		v = map[string]any{"success": true}
	}
	d, merr := json.Marshal(v)
	if merr != nil {
		d, _ = json.Marshal(map[string]any{"error": merr.Error()})
	}
	return string(d)
}
