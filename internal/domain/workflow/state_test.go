package workflow

import "testing"

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusApproved, true},
		{StatusRejected, true},
		{StatusCancelled, true},
		{StatusReturned, false},
		{StatusEscalated, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	valid := []Status{
		StatusPending, StatusInProgress, StatusApproved,
		StatusRejected, StatusCancelled, StatusReturned, StatusEscalated,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s.IsValid() = false, want true", s)
		}
	}

	invalid := []Status{"", "draft", "PENDING", "done"}
	for _, s := range invalid {
		if s.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", string(s))
		}
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusInProgress.String(); got != "in_progress" {
		t.Errorf("StatusInProgress.String() = %q, want %q", got, "in_progress")
	}
	if got := StatusReturned.String(); got != "returned" {
		t.Errorf("StatusReturned.String() = %q, want %q", got, "returned")
	}
}
