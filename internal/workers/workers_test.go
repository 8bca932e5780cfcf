package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
)

type mockCloser struct {
	closed int64
	err    error
	calls  int
}

func (m *mockCloser) CloseExpired(ctx context.Context) (int64, error) {
	m.calls++
	return m.closed, m.err
}

type mockMailer struct {
	to, code string
	err      error
}

func (m *mockMailer) SendResetCode(ctx context.Context, to, code string) error {
	m.to, m.code = to, code
	return m.err
}

type mockToucher struct {
	err   error
	calls int
}

func (m *mockToucher) Touch(ctx context.Context) error {
	m.calls++
	return m.err
}

func TestCloseExpiredWorker(t *testing.T) {
	closer := &mockCloser{closed: 3}
	w := NewCloseExpiredWorker(closer, nil)

	if err := w.Work(context.Background(), &river.Job[CloseExpiredArgs]{Args: CloseExpiredArgs{}}); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if closer.calls != 1 {
		t.Errorf("calls = %d, want 1", closer.calls)
	}
}

func TestCloseExpiredWorker_PropagatesErrors(t *testing.T) {
	want := errors.New("db down")
	w := NewCloseExpiredWorker(&mockCloser{err: want}, nil)

	err := w.Work(context.Background(), &river.Job[CloseExpiredArgs]{Args: CloseExpiredArgs{}})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want wrapped %v", err, want)
	}
}

func TestResetEmailWorker(t *testing.T) {
	mailer := &mockMailer{}
	w := NewResetEmailWorker(mailer, nil)
	job := &river.Job[ResetEmailArgs]{Args: ResetEmailArgs{Email: "alice@example.com", Code: "123456"}}

	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if mailer.to != "alice@example.com" || mailer.code != "123456" {
		t.Errorf("sent to=%q code=%q", mailer.to, mailer.code)
	}
}

func TestResetEmailWorker_PropagatesErrors(t *testing.T) {
	want := errors.New("smtp refused")
	w := NewResetEmailWorker(&mockMailer{err: want}, nil)
	job := &river.Job[ResetEmailArgs]{Args: ResetEmailArgs{Email: "alice@example.com", Code: "123456"}}

	if err := w.Work(context.Background(), job); !errors.Is(err, want) {
		t.Fatalf("err = %v, want wrapped %v", err, want)
	}
}

func TestKeepAliveWorker(t *testing.T) {
	toucher := &mockToucher{}
	w := NewKeepAliveWorker(toucher, nil)

	if err := w.Work(context.Background(), &river.Job[KeepAliveArgs]{Args: KeepAliveArgs{}}); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if toucher.calls != 1 {
		t.Errorf("calls = %d, want 1", toucher.calls)
	}
}
