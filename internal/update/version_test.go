package update

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{
			name:  "simple version",
			input: "1.2.3",
			want:  Version{Major: 1, Minor: 2, Patch: 3},
		},
		{
			name:  "version with v prefix",
			input: "v0.8.2",
			want:  Version{Major: 0, Minor: 8, Patch: 2},
		},
		{
			name:  "missing patch is zero",
			input: "2.1",
			want:  Version{Major: 2, Minor: 1, Patch: 0},
		},
		{
			name:    "four components",
			input:   "1.4.2.0",
			wantErr: true,
		},
		{
			name:    "single number",
			input:   "2024",
			wantErr: true,
		},
		{
			name:    "free-form tag",
			input:   "2024-spring",
			wantErr: true,
		},
		{
			name:  "prerelease suffix ignored",
			input: "1.0.0-rc.1",
			want:  Version{Major: 1, Minor: 0, Patch: 0},
		},
		{
			name:    "invalid format",
			input:   "invalid",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseVersion() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got.Major != tt.want.Major || got.Minor != tt.want.Minor || got.Patch != tt.want.Patch {
				t.Errorf("ParseVersion() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	v, err := ParseVersion("v1.2")
	if err != nil {
		t.Fatalf("ParseVersion() error = %v", err)
	}
	if got := v.String(); got != "1.2.0" {
		t.Errorf("String() = %v, want 1.2.0", got)
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		v1   string
		v2   string
		want int // 1 if v1 > v2, 0 if equal, -1 if v1 < v2
	}{
		// Equal versions
		{name: "equal versions", v1: "0.8.2", v2: "0.8.2", want: 0},
		{name: "equal with v prefix", v1: "v0.8.2", v2: "0.8.2", want: 0},
		{name: "equal with implicit patch", v1: "1.2", v2: "1.2.0", want: 0},

		// Major version differences
		{name: "major version greater", v1: "2.0.0", v2: "1.9.9", want: 1},
		{name: "major version less", v1: "1.0.0", v2: "2.0.0", want: -1},

		// Minor version differences
		{name: "minor version greater", v1: "1.9.0", v2: "1.8.5", want: 1},
		{name: "minor version less", v1: "1.8.0", v2: "1.9.0", want: -1},

		// Patch version differences
		{name: "patch version greater", v1: "1.0.3", v2: "1.0.2", want: 1},
		{name: "patch version less", v1: "1.0.1", v2: "1.0.2", want: -1},

		// Numeric, not lexicographic
		{name: "0.10.0 > 0.9.0", v1: "0.10.0", v2: "0.9.0", want: 1},
		{name: "1.0.10 > 1.0.9", v1: "1.0.10", v2: "1.0.9", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ver1, err := ParseVersion(tt.v1)
			if err != nil {
				t.Fatalf("Failed to parse v1: %v", err)
			}

			ver2, err := ParseVersion(tt.v2)
			if err != nil {
				t.Fatalf("Failed to parse v2: %v", err)
			}

			got := ver1.Compare(ver2)
			if got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.v1, tt.v2, got, tt.want)
			}
		})
	}
}

func TestIsUpdateAvailable(t *testing.T) {
	ordered := []string{"0.1.0", "0.9.9", "0.10.0", "1.0.0", "1.0.1", "1.1.0", "1.10.0", "2.0.0", "10.0.0"}

	for i := range ordered {
		for j := range ordered {
			a, b := ordered[i], ordered[j]
			got := IsUpdateAvailable(a, b)
			want := i < j
			if got != want {
				t.Errorf("IsUpdateAvailable(%s, %s) = %v, want %v", a, b, got, want)
			}
		}
	}
}

func TestIsUpdateAvailableUnparseable(t *testing.T) {
	tests := []struct {
		current string
		latest  string
	}{
		{current: "dev", latest: "1.0.0"},
		{current: "1.0.0", latest: "garbage"},
		{current: "1.0.0", latest: "2024-spring"},
		{current: "1.2.3", latest: "1.2.3.4"},
		{current: "", latest: ""},
	}

	for _, tt := range tests {
		if IsUpdateAvailable(tt.current, tt.latest) {
			t.Errorf("IsUpdateAvailable(%q, %q) = true, want false", tt.current, tt.latest)
		}
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name    string
		current string
		minimum string
		want    bool
	}{
		{name: "no minimum", current: "1.0.0", minimum: "", want: true},
		{name: "above minimum", current: "1.6.0", minimum: "1.5.0", want: true},
		{name: "equal to minimum", current: "1.5.0", minimum: "1.5.0", want: true},
		{name: "below minimum", current: "1.0.0", minimum: "1.5.0", want: false},
		{name: "unparseable minimum", current: "1.0.0", minimum: "latest", want: true},
		{name: "unparseable current", current: "dev", minimum: "1.5.0", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompatible(tt.current, tt.minimum); got != tt.want {
				t.Errorf("IsCompatible(%q, %q) = %v, want %v", tt.current, tt.minimum, got, tt.want)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "with v prefix",
			input: "v0.8.2",
			want:  "0.8.2",
		},
		{
			name:  "without v prefix",
			input: "0.8.2",
			want:  "0.8.2",
		},
		{
			name:  "surrounding whitespace",
			input: " v1.0.0 ",
			want:  "1.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVersion(tt.input); got != tt.want {
				t.Errorf("NormalizeVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}
