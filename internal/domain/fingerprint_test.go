package domain

import (
	"strings"
	"testing"
)

func TestFingerprint_SameOpportunityDifferentSources(t *testing.T) {
	tests := []struct {
		name string
		a    [4]string // title, org, url, description
		b    [4]string
		same bool
	}{
		{
			name: "tracking params and casing differ",
			a:    [4]string{"Senior Backend Engineer", "Acme Corp", "https://jobs.acme.com/123?utm_source=feed", ""},
			b:    [4]string{"senior backend engineer", "ACME CORP", "HTTPS://JOBS.ACME.COM/123#apply", ""},
			same: true,
		},
		{
			name: "trailing slash and punctuation differ",
			a:    [4]string{"Research Grant — Climate", "NSF", "https://grants.gov/abc/", ""},
			b:    [4]string{"research grant climate", "nsf", "https://grants.gov/abc", ""},
			same: true,
		},
		{
			name: "no url, same description prefix",
			a:    [4]string{"PhD Fellowship", "DAAD", "", "Fully funded fellowship for doctoral candidates in computer science, three year duration, Berlin based, includes travel budget and conference support for the full period"},
			b:    [4]string{"PhD Fellowship", "DAAD", "", "Fully funded fellowship for doctoral candidates in computer science, three year duration, Berlin based, includes travel budget and conference support for the full period plus extra tail text that differs"},
			same: true,
		},
		{
			name: "different organizations",
			a:    [4]string{"Senior Backend Engineer", "Acme Corp", "https://jobs.acme.com/123", ""},
			b:    [4]string{"Senior Backend Engineer", "Globex", "https://jobs.acme.com/123", ""},
			same: false,
		},
		{
			name: "different posting urls",
			a:    [4]string{"Senior Backend Engineer", "Acme Corp", "https://jobs.acme.com/123", ""},
			b:    [4]string{"Senior Backend Engineer", "Acme Corp", "https://jobs.acme.com/456", ""},
			same: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fa := Fingerprint(tc.a[0], tc.a[1], tc.a[2], tc.a[3])
			fb := Fingerprint(tc.b[0], tc.b[1], tc.b[2], tc.b[3])
			if (fa == fb) != tc.same {
				t.Fatalf("same=%v, want %v (a=%s b=%s)", fa == fb, tc.same, fa, fb)
			}
		})
	}
}

func TestFingerprint_Shape(t *testing.T) {
	fp := Fingerprint("t", "o", "https://x.org/1", "")
	if len(fp) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(fp))
	}
	if fp != strings.ToLower(fp) {
		t.Fatalf("fingerprint not lowercase hex: %s", fp)
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Jobs.Acme.com/123/?q=1#frag", "https://jobs.acme.com/123"},
		{"HTTPS://EXAMPLE.ORG", "https://example.org"},
		{"", ""},
		{"not a url", ""},
		{"  https://x.org/a/  ", "https://x.org/a"},
	}
	for _, tc := range tests {
		if got := CanonicalURL(tc.in); got != tc.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIdempotencyKey_StableAndDistinct(t *testing.T) {
	k1 := IdempotencyKey("app-1", PlatformEmail)
	k2 := IdempotencyKey("app-1", PlatformEmail)
	if k1 != k2 {
		t.Fatalf("key not stable: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Fatalf("key length = %d, want 64", len(k1))
	}
	if IdempotencyKey("app-1", PlatformWebForm) == k1 {
		t.Fatal("different platforms must yield different keys")
	}
	if IdempotencyKey("app-2", PlatformEmail) == k1 {
		t.Fatal("different applications must yield different keys")
	}
}
