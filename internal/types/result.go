package types

// Result summarizes one extraction run
type Result struct {
	// Completed is false when the video could not be opened
	Completed     bool
	FramesSampled int
	CropsSaved    int
	Files         []string
}
