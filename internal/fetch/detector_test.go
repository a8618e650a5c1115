package fetch

import (
	"errors"
	"testing"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		html       string
		title      string
		status     int
		wantHit    bool
		wantReason string
	}{
		{
			name:       "forbidden status wins regardless of body",
			html:       "<html></html>",
			title:      "ok",
			status:     403,
			wantHit:    true,
			wantReason: "status_403",
		},
		{
			name:       "cloudflare title",
			html:       "<html><body>hello</body></html>",
			title:      "Attention Required! | Cloudflare",
			status:     200,
			wantHit:    true,
			wantReason: "title_cloudflare",
		},
		{
			name:       "cf wrapper marker in body",
			html:       `<div class="cf-wrapper">checking</div>`,
			title:      "one moment",
			status:     200,
			wantHit:    true,
			wantReason: "html:cf-wrapper",
		},
		{
			name:       "sorry blocked marker",
			html:       "<p>Sorry, you have been blocked</p>",
			title:      "",
			status:     200,
			wantHit:    true,
			wantReason: "html:sorry, you have been blocked",
		},
		{
			name:       "ray id marker",
			html:       "<span>Cloudflare Ray ID: abc123</span>",
			title:      "",
			status:     200,
			wantHit:    true,
			wantReason: "html:cloudflare ray id",
		},
		{
			name:   "ordinary page",
			html:   "<html><head><title>Listing</title></head><body><section>ok</section></body></html>",
			title:  "Listing",
			status: 200,
		},
		{
			name:   "unknown status is not a block by itself",
			html:   "<html><body>fine</body></html>",
			title:  "fine",
			status: 0,
		},
		{
			name:       "status beats title precedence",
			html:       "<html></html>",
			title:      "Attention Required! | Cloudflare",
			status:     403,
			wantHit:    true,
			wantReason: "status_403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hit, reason := Detect(tt.html, tt.title, tt.status)
			if hit != tt.wantHit {
				t.Fatalf("Detect() hit = %v, want %v", hit, tt.wantHit)
			}
			if reason != tt.wantReason {
				t.Fatalf("Detect() reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestEscalate(t *testing.T) {
	t.Parallel()

	if err := Escalate(Result{Blocked: false}); err != nil {
		t.Fatalf("clean result escalated: %v", err)
	}

	err := Escalate(Result{
		RequestedURL:  "https://example.com/x",
		StatusCode:    403,
		Title:         "Attention Required!",
		Blocked:       true,
		BlockedReason: "status_403",
	})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %T", err)
	}
	if blocked.StatusCode != 403 || blocked.Reason != "status_403" {
		t.Fatalf("unexpected escalation payload: %+v", blocked)
	}
}
