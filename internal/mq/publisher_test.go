package mq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewRecordChangedMessage_Defaults(t *testing.T) {
	recordID := uuid.New()

	msg, err := NewRecordChangedMessage(RecordChangedPayload{EntityName: "order", RecordID: recordID})
	if err != nil {
		t.Fatalf("NewRecordChangedMessage() error = %v", err)
	}
	if msg.Type != MessageTypeRecordChanged {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeRecordChanged)
	}

	p := msg.Payload.(RecordChangedPayload)
	if p.EventID == uuid.Nil {
		t.Error("EventID should be generated")
	}
	if msg.ID != p.EventID.String() {
		t.Errorf("message ID = %s, want event id %s", msg.ID, p.EventID)
	}
	if p.CorrelationID != p.EventID {
		t.Error("CorrelationID should default to EventID")
	}
	if p.Depth != 1 {
		t.Errorf("Depth = %d, want 1", p.Depth)
	}
	if p.Message != "update" {
		t.Errorf("Message = %q, want update", p.Message)
	}
}

func TestNewRecordChangedMessage_KeepsCascadeFields(t *testing.T) {
	in := RecordChangedPayload{
		EventID:          uuid.New(),
		EntityName:       "customer",
		RecordID:         uuid.New(),
		Message:          "update",
		Depth:            2,
		InitiatingUserID: uuid.New(),
		CorrelationID:    uuid.New(),
	}

	msg, err := NewRecordChangedMessage(in)
	if err != nil {
		t.Fatalf("NewRecordChangedMessage() error = %v", err)
	}
	if got := msg.Payload.(RecordChangedPayload); got != in {
		t.Errorf("payload = %+v, want %+v", got, in)
	}
}

func TestNewRecordChangedMessage_RequiresRecord(t *testing.T) {
	if _, err := NewRecordChangedMessage(RecordChangedPayload{EntityName: "order"}); err == nil {
		t.Error("expected error for missing record id")
	}
}

func TestParsePayload_RoundTripThroughJSON(t *testing.T) {
	in := RecordChangedPayload{EventID: uuid.New(), EntityName: "order", RecordID: uuid.New(), Depth: 3}
	msg, err := NewRecordChangedMessage(in)
	if err != nil {
		t.Fatal(err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}

	got, err := ParsePayload[RecordChangedPayload](&decoded)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if got.RecordID != in.RecordID || got.Depth != 3 || got.EntityName != "order" {
		t.Errorf("ParsePayload() = %+v", got)
	}
}

func TestReject(t *testing.T) {
	cause := errors.New("bad payload")
	err := Reject(cause)

	if !errors.Is(err, ErrReject) {
		t.Error("expected ErrReject")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
}
