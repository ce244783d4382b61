package simd

import (
	"os"
	"sync"
)

// WidthEnv names the environment variable that overrides width detection.
// It accepts the same values as ParseWidth; an unparsable value is ignored.
const WidthEnv = "CSVTOK_SCAN_WIDTH"

var (
	// detectedWidth holds the resolved width (initialized once).
	detectedWidth     Width
	detectedWidthOnce sync.Once
)

// DetectWidth returns the widest vector width supported by the CPU.
// Detection runs once per process; CSVTOK_SCAN_WIDTH overrides it.
func DetectWidth() Width {
	detectedWidthOnce.Do(func() {
		// CPU feature detection is implemented in platform-specific files:
		// - cpuinfo_amd64.go for x86-64
		// - cpuinfo_arm64.go for arm64
		// - cpuinfo_other.go for other platforms
		detectedWidth = hardwareWidth()
		if v, ok := os.LookupEnv(WidthEnv); ok {
			if w, err := ParseWidth(v); err == nil && w != WidthAuto {
				detectedWidth = w
			}
		}
	})
	return detectedWidth
}

// Resolve maps WidthAuto to the detected width and leaves other widths alone.
func (w Width) Resolve() Width {
	if w == WidthAuto {
		return DetectWidth()
	}
	return w
}
