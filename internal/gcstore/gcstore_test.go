package gcstore

import "testing"

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://statements/2025/05/01/may.csv", "statements", "2025/05/01/may.csv", false},
		{"gs://bucket/object.csv", "bucket", "object.csv", false},
		{"gs://bucket-only", "", "", true},
		{"https://example.com/x.csv", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := splitURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("splitURI(%q) expected error", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitURI(%q) error: %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("splitURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("gs://bucket/folder/statement.csv"); got != "statement.csv" {
		t.Errorf("Filename = %q, want statement.csv", got)
	}
	// Invalid URIs pass through untouched.
	if got := Filename("not-a-uri"); got != "not-a-uri" {
		t.Errorf("Filename = %q, want not-a-uri", got)
	}
}
