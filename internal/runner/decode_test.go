package runner

import (
	"errors"
	"testing"
)

func TestDecodeCorrelationID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "html entity quotes",
			body: `<pre>{&quot;route&quot;:&quot;safe&quot;,&quot;call1RequestId&quot;:&quot;abc123&quot;,&quot;match&quot;:true}</pre>`,
			want: "abc123",
		},
		{
			name: "literal quotes",
			body: `{"route":"unsafe","call1RequestId":"xyz789","call2RequestId":"xyz789"}`,
			want: "xyz789",
		},
		{
			name: "indented json inside pre",
			body: "<pre>{\n  &quot;call1RequestId&quot;: &quot;5f0c-11&quot;\n}</pre>",
			want: "5f0c-11",
		},
		{
			name:    "missing field",
			body:    `<html><body>nothing here</body></html>`,
			wantErr: true,
		},
		{
			name:    "empty value",
			body:    `{"call1RequestId":""}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCorrelationID([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, ErrDecode) {
					t.Fatalf("expected ErrDecode, got id=%q err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeCorrelationID_ErrorMessage(t *testing.T) {
	_, err := DecodeCorrelationID([]byte("nope"))
	if err == nil || err.Error() != "could not parse call1RequestId from HTML" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestDecodeCorrelationID_TruncatesAtAmpersand(t *testing.T) {
	got, err := DecodeCorrelationID([]byte(`{"call1RequestId":"ab&cd"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ab" {
		t.Errorf("got %q, want truncated %q", got, "ab")
	}
}

func TestDecodeField_OtherKeys(t *testing.T) {
	body := []byte(`{&quot;call1RequestId&quot;:&quot;one&quot;,&quot;call2RequestId&quot;:&quot;two&quot;}`)

	if got, ok := DecodeField(body, "call2RequestId"); !ok || got != "two" {
		t.Errorf("call2RequestId = %q, %v", got, ok)
	}
	if _, ok := DecodeField(body, "call3RequestId"); ok {
		t.Error("expected no match for call3RequestId")
	}
}
