package contracts

import (
	"encoding/json"
	"testing"
)

func TestEncode_WireShape(t *testing.T) {
	body, err := Encode(EventUserCreated, CreationRequested{Username: "alice", Email: "a@example.com", PasswordKey: "temp_password:alice:1:ab"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["event_type"] != "user.created" {
		t.Errorf("event_type = %v", m["event_type"])
	}
	data, ok := m["user_data"].(map[string]any)
	if !ok {
		t.Fatalf("user_data = %T", m["user_data"])
	}
	if data["password_key"] != "temp_password:alice:1:ab" || data["username"] != "alice" {
		t.Errorf("user_data = %v", data)
	}
	if _, leaked := data["password"]; leaked {
		t.Error("password must never be part of the request")
	}
}

func TestDecode_Completion(t *testing.T) {
	body := []byte(`{"event_type":"user.created","user_data":{"id":"u-1","username":"alice","email":"a@example.com",
		"original_request":{"username":"alice","email":"a@example.com","password_key":"k"}}}`)
	var got CreationCompleted
	et, err := Decode(body, &got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if et != EventUserCreated || got.ID != "u-1" || got.OriginalRequest.PasswordKey != "k" {
		t.Errorf("Decode = %q, %+v", et, got)
	}
}

func TestDecode_Errors(t *testing.T) {
	var out CreationCompleted
	if _, err := Decode([]byte("{not json"), &out); err == nil {
		t.Error("malformed envelope: want error")
	}
	et, err := Decode([]byte(`{"event_type":"user.created","user_data":"oops"}`), &out)
	if err == nil || et != EventUserCreated {
		t.Errorf("bad user_data: got %q, %v; want event type and error", et, err)
	}
	et, err = Decode([]byte(`{"event_type":"user.deleted"}`), &out)
	if err != nil || et != EventUserDeleted {
		t.Errorf("no user_data: got %q, %v", et, err)
	}
}
