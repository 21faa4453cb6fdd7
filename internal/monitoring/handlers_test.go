package monitoring

import "testing"

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		allowed []string
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			reqHost: "localhost:8090",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8090",
			reqHost: "localhost:8090",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			reqHost: "localhost:8090",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://ops.example.com",
			allowed: []string{"https://ops.example.com"},
			reqHost: "0.0.0.0:8090",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			allowed: []string{"https://ops.example.com"},
			reqHost: "0.0.0.0:8090",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://monitor.internal:8090",
			reqHost: "monitor.internal:8090",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.allowed, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
