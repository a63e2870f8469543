package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ent0n29/parley/internal/summary"
)

type scriptedProvider struct {
	reply string
	err   error
	calls [][]Turn
}

func (p *scriptedProvider) Complete(_ context.Context, turns []Turn) (string, error) {
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	p.calls = append(p.calls, cp)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

// gatedProvider blocks each call until release is closed.
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	reply   string
}

func (p *gatedProvider) Complete(ctx context.Context, _ []Turn) (string, error) {
	p.started <- struct{}{}
	select {
	case <-p.release:
		return p.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type failingWriter struct{}

func (failingWriter) WriteSummary(context.Context, string, string) error {
	return os.ErrPermission
}

func TestNewSeedsSystemTurn(t *testing.T) {
	s := New("You are a helpful assistant.")
	got := s.Transcript()
	want := Transcript{{Role: RoleSystem, Content: "You are a helpful assistant."}}
	if !got.Equal(want) {
		t.Fatalf("Transcript() = %+v, want %+v", got, want)
	}

	if n := New("   ").Len(); n != 0 {
		t.Fatalf("blank seed Len() = %d, want 0", n)
	}
}

func TestSubmitAppendsUserAndAssistant(t *testing.T) {
	s := New("You are a helpful assistant.")
	p := &scriptedProvider{reply: "Hi there"}

	reply, transcript, err := s.Submit(context.Background(), "Hello", nil, p)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if reply != "Hi there" {
		t.Fatalf("reply = %q, want %q", reply, "Hi there")
	}
	want := Transcript{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Hi there"},
	}
	if !transcript.Equal(want) {
		t.Fatalf("transcript = %+v, want %+v", transcript, want)
	}
	if !s.Transcript().Equal(want) {
		t.Fatalf("stored transcript = %+v, want %+v", s.Transcript(), want)
	}
	if len(p.calls) != 1 || len(p.calls[0]) != 2 {
		t.Fatalf("provider saw %+v, want seed + user turn", p.calls)
	}
}

func TestSubmitLengthGrowsByTwoPerCall(t *testing.T) {
	for _, seed := range []string{"", "seed"} {
		s := New(seed)
		seedCount := s.Len()
		p := &scriptedProvider{reply: "ok"}
		for i := 0; i < 5; i++ {
			if _, _, err := s.Submit(context.Background(), "msg", nil, p); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
		}
		if got, want := s.Len(), seedCount+10; got != want {
			t.Fatalf("seed=%q Len() = %d, want %d", seed, got, want)
		}
		tr := s.Transcript()
		for i := seedCount; i < len(tr); i += 2 {
			if tr[i].Role != RoleUser || tr[i+1].Role != RoleAssistant {
				t.Fatalf("turn order broken at %d: %+v", i, tr)
			}
		}
	}
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	s := New("seed")
	before := s.Transcript()
	p := &scriptedProvider{reply: "unused"}

	for _, text := range []string{"", "   \n\t"} {
		_, _, err := s.Submit(context.Background(), text, nil, p)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Submit(%q) error = %v, want ErrInvalidInput", text, err)
		}
	}
	_, _, err := s.Submit(context.Background(), "", &Reference{Body: ""}, p)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Submit(empty reference) error = %v, want ErrInvalidInput", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("provider called %d times, want 0", len(p.calls))
	}
	if !s.Transcript().Equal(before) {
		t.Fatalf("transcript changed after invalid submit")
	}
}

func TestSubmitWithReferencePrefixesContent(t *testing.T) {
	s := New("", WithReferencePrefix("The following is a code snippet:\n"))
	p := &scriptedProvider{reply: "looks fine"}

	_, transcript, err := s.Submit(context.Background(), "Review this", &Reference{Name: "main.py", Body: "print(1)"}, p)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	want := "The following is a code snippet:\nprint(1)\n\nReview this"
	if transcript[0].Content != want {
		t.Fatalf("user content = %q, want %q", transcript[0].Content, want)
	}

	// Reference alone is enough to submit.
	if _, _, err := s.Submit(context.Background(), "", &Reference{Body: "x"}, p); err != nil {
		t.Fatalf("Submit(reference only) error = %v", err)
	}
}

func TestSubmitProviderFailureLeavesTranscript(t *testing.T) {
	s := New("seed")
	before := s.Transcript()
	cause := errors.New("connection refused")

	_, _, err := s.Submit(context.Background(), "Hello", nil, &scriptedProvider{err: cause})
	if !IsProviderError(err) {
		t.Fatalf("error = %T %v, want *ProviderError", err, err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("error does not wrap cause: %v", err)
	}
	if !s.Transcript().Equal(before) {
		t.Fatalf("transcript = %+v, want %+v", s.Transcript(), before)
	}
}

func TestSubmitKeepsExistingProviderErrorKind(t *testing.T) {
	s := New("")
	pe := &ProviderError{Provider: "openai", Kind: KindRateLimit, Err: errors.New("429")}
	_, _, err := s.Submit(context.Background(), "hi", nil, &scriptedProvider{err: pe})
	var got *ProviderError
	if !errors.As(err, &got) || got.Kind != KindRateLimit {
		t.Fatalf("error = %v, want rate_limit provider error", err)
	}
}

func TestSubmitWindowBoundsProviderInput(t *testing.T) {
	s := New("seed", WithWindow(2))
	p := &scriptedProvider{reply: "r"}
	for i := 0; i < 3; i++ {
		if _, _, err := s.Submit(context.Background(), "q", nil, p); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	last := p.calls[len(p.calls)-1]
	if len(last) != 3 {
		t.Fatalf("provider saw %d turns, want 3", len(last))
	}
	if last[0].Role != RoleSystem || last[2].Role != RoleUser {
		t.Fatalf("windowed turns = %+v", last)
	}
	if got := s.Len(); got != 7 {
		t.Fatalf("stored Len() = %d, want 7", got)
	}
}

func TestSubmitDiscardsReplyAfterReset(t *testing.T) {
	s := New("seed")
	p := &gatedProvider{started: make(chan struct{}, 1), release: make(chan struct{}), reply: "late"}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Submit(context.Background(), "before reset", nil, p)
		done <- err
	}()
	<-p.started
	s.Reset("fresh seed")
	close(p.release)

	if err := <-done; !errors.Is(err, ErrReset) {
		t.Fatalf("Submit() error = %v, want ErrReset", err)
	}
	want := Transcript{{Role: RoleSystem, Content: "fresh seed"}}
	if got := s.Transcript(); !got.Equal(want) {
		t.Fatalf("transcript = %+v, want %+v", got, want)
	}
}

func TestSubmitConcurrentCallsKeepEveryTurn(t *testing.T) {
	s := New("")
	p := &gatedProvider{started: make(chan struct{}, 2), release: make(chan struct{}), reply: "ok"}
	close(p.release)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, text := range []string{"first", "second"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, _, err := s.Submit(context.Background(), text, nil, p)
			errs <- err
		}(text)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	got := s.Transcript()
	if len(got) != 4 {
		t.Fatalf("Len() = %d, want 4: %+v", len(got), got)
	}
	for i, turn := range got {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d role = %q, want %q", i, turn.Role, want)
		}
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	s := New("")
	_, err := s.Summarize(context.Background(), &scriptedProvider{reply: "x"}, "Summarize:\n\n")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("error = %v, want ErrEmptyTranscript", err)
	}
}

func TestSummarizeDoesNotMutate(t *testing.T) {
	s := New("")
	s.transcript = Transcript{
		{Role: RoleUser, Content: "A"},
		{Role: RoleAssistant, Content: "B"},
	}
	before := s.Transcript()
	p := &scriptedProvider{reply: "Summary text"}

	got, err := s.Summarize(context.Background(), p, "Summarize:\n\n")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "Summary text" {
		t.Fatalf("summary = %q, want %q", got, "Summary text")
	}
	if !s.Transcript().Equal(before) {
		t.Fatalf("transcript mutated: %+v", s.Transcript())
	}

	if len(p.calls) != 1 || len(p.calls[0]) != 1 {
		t.Fatalf("provider calls = %+v, want one single-turn request", p.calls)
	}
	req := p.calls[0][0]
	if req.Role != RoleSystem {
		t.Fatalf("request role = %q, want system", req.Role)
	}
	if want := "Summarize:\n\nUser: A\nAssistant: B\n"; req.Content != want {
		t.Fatalf("request = %q, want %q", req.Content, want)
	}
}

func TestSummarizeProviderFailure(t *testing.T) {
	s := New("seed")
	_, err := s.Summarize(context.Background(), &scriptedProvider{err: errors.New("boom")}, "")
	if !IsProviderError(err) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
}

func TestPersistSummaryOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := New("", WithSummaryWriter(summary.NewFileStore(dir)))

	for i := 0; i < 2; i++ {
		if err := s.PersistSummary(context.Background(), "final text", "summary.txt"); err != nil {
			t.Fatalf("PersistSummary() error = %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "final text" {
		t.Fatalf("content = %q, want %q", string(data), "final text")
	}

	if err := s.PersistSummary(context.Background(), "short", "summary.txt"); err != nil {
		t.Fatalf("PersistSummary() error = %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "summary.txt"))
	if string(data) != "short" {
		t.Fatalf("content = %q, want %q", string(data), "short")
	}
}

func TestPersistSummaryFailure(t *testing.T) {
	s := New("", WithSummaryWriter(failingWriter{}))
	err := s.PersistSummary(context.Background(), "x", "summary.txt")
	if !IsPersistenceError(err) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("error does not wrap cause: %v", err)
	}
}

func TestResetReseeds(t *testing.T) {
	s := New("first")
	if _, _, err := s.Submit(context.Background(), "hi", nil, &scriptedProvider{reply: "yo"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	s.Reset("second")
	got := s.Transcript()
	if len(got) != 1 || got[0].Content != "second" {
		t.Fatalf("Transcript() after Reset = %+v", got)
	}
}

func TestRoleTitle(t *testing.T) {
	if got := RoleAssistant.Title(); got != "Assistant" {
		t.Fatalf("Title() = %q, want Assistant", got)
	}
	if !strings.HasPrefix(RenderSummaryRequest("T:", Transcript{{Role: RoleSystem, Content: "s"}}), "T:System: s") {
		t.Fatalf("unexpected render")
	}
}
