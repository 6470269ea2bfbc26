package browser

import (
	"runtime"
	"testing"
)

func TestOpenSupported(t *testing.T) {
	// We can't actually test browser opening in a unit test
	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		if _, _, err := Command(runtime.GOOS, "https://example.com"); err != nil {
			t.Errorf("Command() error = %v", err)
		}
	default:
		t.Skipf("Unsupported platform: %s", runtime.GOOS)
	}
}

func TestCommand(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs int
		wantErr  bool
	}{
		{"darwin", "open", 1, false},
		{"linux", "xdg-open", 1, false},
		{"windows", "rundll32", 2, false},
		{"plan9", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := Command(tt.goos, "https://checkout.example/s1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command() error = %v, wantErr %v", err, tt.wantErr)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
			if tt.wantArgs > 0 && args[len(args)-1] != "https://checkout.example/s1" {
				t.Errorf("last arg = %q, want the url", args[len(args)-1])
			}
		})
	}
}
