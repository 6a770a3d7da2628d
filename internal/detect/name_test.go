package detect

import "testing"

func TestExtractSubscriptionName(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"NETFLIX.COM MEMBERSHIP 4421", "Netflix"},
		{"netflix.com", "Netflix"},
		{"SPOTIFY P2B4F8", "Spotify"},
		{"PLANET FITNESS MONTHLY DUES", "Fitness"},
		{"AIRTEL MOBILE POSTPAID", "Mobile"},
		{"ACME WIDGETS SUBSCRIPTION FEE MARCH", "Acme Widgets Subscription"},
		{"LOCALCO", "Localco"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := ExtractSubscriptionName(tt.description); got != tt.want {
				t.Errorf("ExtractSubscriptionName(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NETFLIX", "Netflix"},
		{"APPLE MUSIC", "Apple Music"},
		{"GOLD'S GYM", "Gold'S Gym"}, // every letter-run restarts, apostrophes included
		{"", ""},
	}

	for _, tt := range tests {
		if got := titleCase(tt.in); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
