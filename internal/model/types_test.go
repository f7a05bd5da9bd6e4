package model

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewMessage(t *testing.T) {
	fields := map[string]any{"token": "abc", "type": "ignored"}
	m := NewMessage(TypeParentView, fields)

	if m.Type() != TypeParentView {
		t.Errorf("Type() = %q, want %q", m.Type(), TypeParentView)
	}
	if m["token"] != "abc" {
		t.Errorf("token = %v, want abc", m["token"])
	}
	if fields["type"] != "ignored" {
		t.Error("NewMessage modified the caller's map")
	}
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr error
	}{
		{name: "ping", msg: Ping(), wantErr: nil},
		{name: "missing type", msg: Message{"token": "abc"}, wantErr: ErrMissingType},
		{name: "non-string type", msg: Message{"type": 7}, wantErr: ErrMissingType},
		{name: "empty type", msg: Message{"type": ""}, wantErr: ErrMissingType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	data, err := ParentView("abc").Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := `{"token":"abc","type":"parent_view"}`
	if string(data) != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}

	if _, err := (Message{"token": "abc"}).Encode(); !errors.Is(err, ErrMissingType) {
		t.Errorf("Encode without type = %v, want ErrMissingType", err)
	}
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"type":"parent_view_success","data":{"athleteId":42}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := Message{
		"type": "parent_view_success",
		"data": map[string]any{"athleteId": float64(42)},
	}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("Decode() = %#v, want %#v", m, want)
	}

	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Error("expected error for truncated frame")
	}
	if _, err := Decode([]byte(`{"data":1}`)); !errors.Is(err, ErrMissingType) {
		t.Errorf("Decode without type = %v, want ErrMissingType", err)
	}
}

func TestParseParentViewSuccess(t *testing.T) {
	m, err := Decode([]byte(`{"type":"parent_view_success","data":{"athleteId":42,"name":"Sam"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	got, err := ParseParentViewSuccess(m)
	if err != nil {
		t.Fatalf("ParseParentViewSuccess failed: %v", err)
	}
	if got.AthleteID != 42 {
		t.Errorf("AthleteID = %d, want 42", got.AthleteID)
	}
	if got.Extra["name"] != "Sam" {
		t.Errorf("Extra[name] = %v, want Sam", got.Extra["name"])
	}

	if _, err := ParseParentViewSuccess(Message{"type": TypeError}); !errors.Is(err, ErrWrongType) {
		t.Errorf("wrong type = %v, want ErrWrongType", err)
	}
	if _, err := ParseParentViewSuccess(Message{"type": TypeParentViewSuccess}); err == nil {
		t.Error("expected error for missing data")
	}
	if _, err := ParseParentViewSuccess(Message{"type": TypeParentViewSuccess, "data": map[string]any{}}); err == nil {
		t.Error("expected error for missing athleteId")
	}
}

func TestErrorReason(t *testing.T) {
	reason, ok := ErrorReason(Message{"type": TypeError, "message": "invalid token"})
	if !ok || reason != "invalid token" {
		t.Errorf("ErrorReason() = (%q, %v), want (invalid token, true)", reason, ok)
	}

	if _, ok := ErrorReason(Ping()); ok {
		t.Error("ErrorReason(ping) returned ok")
	}
}
