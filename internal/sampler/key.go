package sampler

import (
	"fmt"
	"path/filepath"
)

// SampleKey locates a sampled frame by elapsed second and position within that second
type SampleKey struct {
	Second int
	Frame  int
}

// Dir returns outputDir/second_<n>/frame_<m>
func (k SampleKey) Dir(outputDir string) string {
	return filepath.Join(outputDir, fmt.Sprintf("second_%d", k.Second), fmt.Sprintf("frame_%d", k.Frame))
}

// CropName returns the file name of the detection-th box found in a frame
func CropName(class string, frame, detection int) string {
	return fmt.Sprintf("%s_%d_%d.jpg", class, frame, detection)
}
