package domain

import (
	"encoding/json"
	"testing"
)

func TestPrompt_MarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		prompt Prompt
		want   string
	}{
		{"text", TextPrompt("oi"), `"oi"`},
		{"lone text part flattens", PartsPrompt([]ContentPart{TextPart("oi")}), `"oi"`},
		{"empty parts", PartsPrompt(nil), `[]`},
		{
			"text and image",
			PartsPrompt([]ContentPart{TextPart("olha"), ImagePart("https://cdn/a.png")}),
			`[{"type":"text","text":"olha"},{"type":"image_url","image_url":{"url":"https://cdn/a.png"}}]`,
		},
		{
			"audio only",
			PartsPrompt([]ContentPart{AudioPart("https://cdn/a.ogg")}),
			`[{"type":"audio_url","audio_url":{"url":"https://cdn/a.ogg"}}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.prompt)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, b)
			}
		})
	}
}

func TestGenerationRequest_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(GenerationRequest{Prompt: TextPrompt("x"), UserID: "u1", ChannelID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"prompt":"x","user_id":"u1","channel_id":"c1"}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}

func TestPrompt_UnmarshalJSON(t *testing.T) {
	var p Prompt
	if err := json.Unmarshal([]byte(`[{"type":"text","text":"só"}]`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.IsText() || p.Text() != "só" {
		t.Fatalf("expected flattened text prompt, got %+v", p)
	}
	if err := json.Unmarshal([]byte(`42`), &p); err == nil {
		t.Fatal("expected error for a number")
	}
}

func TestReply_IsEmpty(t *testing.T) {
	if !(Reply{}).IsEmpty() {
		t.Fatal("zero reply should be empty")
	}
	if (Reply{Files: []File{{Name: "a"}}}).IsEmpty() {
		t.Fatal("reply with a file is not empty")
	}
}
