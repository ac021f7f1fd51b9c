package models

import (
	"testing"
)

func TestNewActivityLogEntry_Complete(t *testing.T) {
	userID := int64(42)
	event := ActivityEvent{
		UserID:       &userID,
		Username:     "alice",
		ActivityType: ActivityLoginFailed,
		Description:  "Invalid password (Attempt 2)",
		Origin:       OriginMetadata{IPAddress: "192.168.1.1", UserAgent: "curl/7.68.0"},
		Success:      false,
		ErrorMessage: "BadCredential",
	}

	entry := NewActivityLogEntry(event)

	if entry.UserID == nil || *entry.UserID != userID {
		t.Errorf("expected user_id %d, got %v", userID, entry.UserID)
	}
	if entry.Username == nil || *entry.Username != "alice" {
		t.Errorf("expected username snapshot alice, got %v", entry.Username)
	}
	if entry.ActivityType != ActivityLoginFailed {
		t.Errorf("expected activity type %s, got %s", ActivityLoginFailed, entry.ActivityType)
	}
	if entry.IPAddress == nil || *entry.IPAddress != "192.168.1.1" {
		t.Errorf("expected ip_address to be set, got %v", entry.IPAddress)
	}
	if entry.UserAgent == nil || *entry.UserAgent != "curl/7.68.0" {
		t.Errorf("expected user_agent to be set, got %v", entry.UserAgent)
	}
	if entry.ErrorMessage == nil || *entry.ErrorMessage != "BadCredential" {
		t.Errorf("expected error_message to be set, got %v", entry.ErrorMessage)
	}
	if entry.Success {
		t.Error("expected success=false")
	}
}

func TestNewActivityLogEntry_OmitOptionalFields(t *testing.T) {
	entry := NewActivityLogEntry(ActivityEvent{
		Username:     "ghost",
		ActivityType: ActivityLoginFailed,
	})

	if entry.UserID != nil {
		t.Errorf("expected nil user_id for unknown user, got %v", *entry.UserID)
	}
	if entry.Username == nil || *entry.Username != "ghost" {
		t.Errorf("username snapshot must survive without a user reference, got %v", entry.Username)
	}
	if entry.Description != nil || entry.IPAddress != nil || entry.UserAgent != nil || entry.ErrorMessage != nil {
		t.Error("expected empty optional fields to map to NULL")
	}
}
