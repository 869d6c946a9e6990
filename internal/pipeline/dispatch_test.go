package pipeline

import (
	"context"
	"errors"
	"testing"

	"shapebot/internal/domain"

	"github.com/google/go-cmp/cmp"
)

type collected struct {
	replies []domain.Reply
}

func (c *collected) deliver(r domain.Reply) error {
	c.replies = append(c.replies, r)
	return nil
}

func TestDispatch_PlainReply(t *testing.T) {
	gen := &fakeGenerator{}
	tools := &fakeTools{}
	var out collected
	d := NewDispatcher(gen, tools, testLogger())

	if err := d.Dispatch(context.Background(), "olá, tudo bem?", "u1", "c1", out.deliver); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.Reply{{Content: "olá, tudo bem?"}}
	if diff := cmp.Diff(want, out.replies); diff != "" {
		t.Fatalf("replies mismatch (-want +got):\n%s", diff)
	}
	if gen.calls() != 0 || len(tools.requests) != 0 {
		t.Fatal("plain reply should not call generator or tools")
	}
}

func TestDispatch_DeepthinkThenImage(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"<imageGenerate: Z> reescrito"}}
	tools := &fakeTools{}
	var out collected
	d := NewDispatcher(gen, tools, testLogger())

	raw := "<Deepthink: X> e <imageGenerate: Y>"
	if err := d.Dispatch(context.Background(), raw, "u1", "c1", out.deliver); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.calls() != 1 {
		t.Fatalf("expected one deepthink call, got %d", gen.calls())
	}
	req := gen.requests[0]
	wantPrompt := "<raciocínio>: O usuário deseja: X. O que você acha que deve ser feito?"
	if req.Prompt.Text() != wantPrompt || req.UserID != "u1" || req.ChannelID != "c1" {
		t.Fatalf("unexpected deepthink request %+v (prompt %q)", req, req.Prompt.Text())
	}

	// Image capture comes from the original reply, not the rewrite.
	wantTools := []domain.ToolRequest{{Tool: domain.ToolImage, Input: "Y", UserID: "u1", ChannelID: "c1"}}
	if diff := cmp.Diff(wantTools, tools.requests); diff != "" {
		t.Fatalf("tool requests mismatch (-want +got):\n%s", diff)
	}
	wantReplies := []domain.Reply{{Content: "gerarImagem:Y"}}
	if diff := cmp.Diff(wantReplies, out.replies); diff != "" {
		t.Fatalf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_DeepthinkOnlyDeliversRewrite(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"primeiro", "segundo"}}
	var out collected
	d := NewDispatcher(gen, &fakeTools{}, testLogger())

	raw := "<deepthink: a> <deepthink: b>"
	if err := d.Dispatch(context.Background(), raw, "u1", "c1", out.deliver); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls() != 2 {
		t.Fatalf("expected two deepthink calls, got %d", gen.calls())
	}
	want := []domain.Reply{{Content: "segundo"}}
	if diff := cmp.Diff(want, out.replies); diff != "" {
		t.Fatalf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_MultipleDeliveriesInOrder(t *testing.T) {
	tools := &fakeTools{}
	var out collected
	d := NewDispatcher(&fakeGenerator{}, tools, testLogger())

	raw := "<codeSimple[go]: server> <imageGenerate: A> <imageGenerate: B>"
	if err := d.Dispatch(context.Background(), raw, "u1", "c1", out.deliver); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.Reply{
		{Content: "gerarImagem:A"},
		{Content: "gerarImagem:B"},
		{Content: "criarCodigo:server"},
	}
	if diff := cmp.Diff(want, out.replies); diff != "" {
		t.Fatalf("replies mismatch (-want +got):\n%s", diff)
	}
	if tools.requests[2].Extension != "go" {
		t.Fatalf("expected extension go, got %q", tools.requests[2].Extension)
	}
}

func TestDispatch_Errors(t *testing.T) {
	t.Run("deepthink", func(t *testing.T) {
		boom := errors.New("relay down")
		var out collected
		d := NewDispatcher(&fakeGenerator{err: boom}, &fakeTools{}, testLogger())
		err := d.Dispatch(context.Background(), "<deepthink: x>", "u1", "c1", out.deliver)
		if !errors.Is(err, boom) {
			t.Fatalf("expected relay error, got %v", err)
		}
		if len(out.replies) != 0 {
			t.Fatalf("nothing should be delivered, got %+v", out.replies)
		}
	})
	t.Run("tool", func(t *testing.T) {
		boom := errors.New("tool down")
		var out collected
		d := NewDispatcher(&fakeGenerator{}, &fakeTools{err: boom}, testLogger())
		err := d.Dispatch(context.Background(), "<imageGenerate: x>", "u1", "c1", out.deliver)
		if !errors.Is(err, boom) {
			t.Fatalf("expected tool error, got %v", err)
		}
	})
	t.Run("deliver", func(t *testing.T) {
		boom := errors.New("send failed")
		d := NewDispatcher(&fakeGenerator{}, &fakeTools{}, testLogger())
		err := d.Dispatch(context.Background(), "oi", "u1", "c1", func(domain.Reply) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("expected deliver error, got %v", err)
		}
	})
}
