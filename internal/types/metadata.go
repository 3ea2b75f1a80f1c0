package types

// VideoMetadata represents the stream properties reported by a video source
type VideoMetadata struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	Codec     string  `json:"codec,omitempty"`
}
