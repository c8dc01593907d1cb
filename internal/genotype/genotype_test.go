package genotype

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "AG", "AG"},
		{"semicolon", "A;G", "AG"},
		{"slash", "c/t", "CT"},
		{"lowercase", "gg", "GG"},
		{"no-call", "--", "--"},
		{"indel codes", "i;d", "ID"},
		{"single allele", "A", "A"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsNoCall(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"--", true},
		{"-;-", true},
		{"", true},
		{"  ", true},
		{"AG", false},
		{"D", false},
	}

	for _, tt := range tests {
		if got := IsNoCall(tt.raw); got != tt.want {
			t.Errorf("IsNoCall(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestComplement(t *testing.T) {
	tests := []struct {
		name string
		g    string
		want string
	}{
		{"homozygous", "CC", "GG"},
		{"heterozygous", "AG", "TC"},
		{"all bases", "ACGT", "TGCA"},
		{"deletion allele", "A-", "T-"},
		{"indel codes kept", "ID", "ID"},
		{"mixed indel", "DT", "DA"},
		{"empty", "", ""},
		{"long sequence", "ACGTACGTAC", "TGCATGCATG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Complement(tt.g); got != tt.want {
				t.Errorf("Complement(%q) = %q, want %q", tt.g, got, tt.want)
			}
		})
	}
}

func TestComplementInvolution(t *testing.T) {
	bases := "ACGT"
	for i := 0; i < len(bases); i++ {
		for j := 0; j < len(bases); j++ {
			g := string([]byte{bases[i], bases[j]})
			if got := Complement(Complement(g)); got != g {
				t.Errorf("Complement(Complement(%q)) = %q", g, got)
			}
		}
	}
}

func TestReverse(t *testing.T) {
	tests := []struct {
		g    string
		want string
	}{
		{"AG", "GA"},
		{"CC", "CC"},
		{"A", "A"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Reverse(tt.g); got != tt.want {
			t.Errorf("Reverse(%q) = %q, want %q", tt.g, got, tt.want)
		}
	}
}
