package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("noreply@reedz.bet", "alice@example.com", "Your Reedz Password Reset Code",
		"Your Reedz password reset code is: 123456\n\nThis code will expire in 5 minutes.")

	for _, want := range []string{
		"From: noreply@reedz.bet\r\n",
		"To: alice@example.com\r\n",
		"Subject: Your Reedz Password Reset Code\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"reset code is: 123456\r\n",
		"This code will expire in 5 minutes.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q\nmessage:\n%s", want, msg)
		}
	}
	if strings.Contains(strings.ReplaceAll(msg, "\r\n", ""), "\n") {
		t.Error("message contains bare LF line endings")
	}
}

func TestSend_RequiresCredentials(t *testing.T) {
	m := New(Config{Host: "smtp.gmail.com", Port: 465})

	err := m.SendResetCode(context.Background(), "alice@example.com", "123456")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNew_FromDefaultsToUsername(t *testing.T) {
	m := New(Config{Username: "bot@reedz.bet", Password: "pw"})
	if m.cfg.From != "bot@reedz.bet" {
		t.Errorf("From = %q, want bot@reedz.bet", m.cfg.From)
	}
}
