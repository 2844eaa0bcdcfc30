package model_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/gt"
)

type recordingHandler struct {
	calls []string
	texts []string
}

func (h *recordingHandler) OnMessageStart(ctx context.Context) error {
	h.calls = append(h.calls, "start")
	return nil
}

func (h *recordingHandler) OnMessageResponse(ctx context.Context, text string) error {
	h.calls = append(h.calls, "response")
	h.texts = append(h.texts, text)
	return nil
}

func (h *recordingHandler) OnMessageEnd(ctx context.Context) error {
	h.calls = append(h.calls, "end")
	return nil
}

func (h *recordingHandler) OnNotification(ctx context.Context, n *model.Notification) error {
	h.calls = append(h.calls, "notification:"+n.Recipient)
	return nil
}

func (h *recordingHandler) OnDBResponse(ctx context.Context, db *model.Database) error {
	h.calls = append(h.calls, "db")
	return nil
}

func (h *recordingHandler) OnAssignments(ctx context.Context, assignments []*model.Assignment) error {
	h.calls = append(h.calls, "assignments")
	return nil
}

func TestDecodeEventDispatch(t *testing.T) {
	ctx := context.Background()
	frames := []string{
		`{"event":"message_start"}`,
		`{"event":"message_response","data":"Hel"}`,
		`{"event":"message_response","data":"lo"}`,
		`{"event":"message_end"}`,
		`{"event":"notification","data":{"recipient":"Kroger","message":"pickup at 5","timestamp":"2024-10-19T10:00:00Z"}}`,
		`{"event":"db_response","data":{"locations":{}}}`,
		`{"event":"assignments","data":[]}`,
	}

	h := &recordingHandler{}
	for _, f := range frames {
		ev, err := model.DecodeEvent([]byte(f))
		gt.NoError(t, err)
		gt.NoError(t, model.DispatchEvent(ctx, ev, h))
	}

	gt.A(t, h.calls).Length(7)
	gt.Equal(t, h.calls[0], "start")
	gt.Equal(t, h.calls[3], "end")
	gt.Equal(t, h.calls[4], "notification:Kroger")
	gt.Equal(t, h.calls[5], "db")
	gt.Equal(t, h.calls[6], "assignments")
	gt.Equal(t, h.texts[0]+h.texts[1], "Hello")
}

func TestDecodeEventUnknown(t *testing.T) {
	_, err := model.DecodeEvent([]byte(`{"event":"typing","data":1}`))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrUnknownEvent))
}

func TestDecodeEventMalformed(t *testing.T) {
	testCases := map[string]string{
		"not json":       `{"event":`,
		"no tag":         `{"data":"x"}`,
		"wrong data":     `{"event":"message_response","data":{"a":1}}`,
		"missing data":   `{"event":"notification"}`,
		"bad assignment": `{"event":"assignments","data":[["A","B"]]}`,
	}

	for name, frame := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := model.DecodeEvent([]byte(frame))
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrMalformedFrame))
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	ts := time.Date(2024, 10, 19, 10, 0, 0, 0, time.UTC)
	data, err := model.EncodeEvent(model.NotificationEvent{Notification: &model.Notification{
		Recipient: "Journey To Housing",
		Message:   "Kroger has fruits for you",
		Timestamp: ts,
	}})
	gt.NoError(t, err)

	var raw map[string]any
	gt.NoError(t, json.Unmarshal(data, &raw))
	gt.Equal(t, raw["event"], any("notification"))
	payload := raw["data"].(map[string]any)
	gt.Equal(t, payload["recipient"], any("Journey To Housing"))
	gt.Equal(t, payload["timestamp"], any("2024-10-19T10:00:00Z"))

	data, err = model.EncodeEvent(model.AssignmentsEvent{})
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains(`"data":[]`)
}

func TestRequestRoundTrip(t *testing.T) {
	data, err := model.EncodeRequest(model.GetDB{})
	gt.NoError(t, err)
	gt.Equal(t, string(data), `{"event":"get_db"}`)

	data, err = model.EncodeRequest(model.SendMessages{Messages: []*model.Message{
		{Role: model.RoleUser, Content: "I have 3 apples"},
	}})
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains(`"messages":[{"role":"user","content":"I have 3 apples"}]`)

	req, err := model.DecodeRequest(data)
	gt.NoError(t, err)
	msgs, ok := req.(model.SendMessages)
	gt.True(t, ok)
	gt.A(t, msgs.Messages).Length(1)
	gt.Equal(t, msgs.Messages[0].Content, "I have 3 apples")
}

func TestDecodeRequestRejectsBadRole(t *testing.T) {
	_, err := model.DecodeRequest([]byte(`{"event":"message","messages":[{"role":"system","content":"x"}]}`))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMalformedFrame))

	_, err = model.DecodeRequest([]byte(`{"event":"subscribe"}`))
	gt.True(t, errors.Is(err, model.ErrUnknownEvent))
}
