package domain

// ExtractorConfig describes the feature model shared by every stored vector.
type ExtractorConfig struct {
	Model      string
	Dimensions int
	InputSize  int
	ResizeTo   int
	Mean       [3]float32
	Std        [3]float32
}

// DefaultExtractorConfig returns settings for MobileNetV3-small with the classifier removed.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Model:      "mobilenet_v3_small",
		Dimensions: 576,
		InputSize:  224,
		ResizeTo:   256,
		Mean:       [3]float32{0.485, 0.456, 0.406},
		Std:        [3]float32{0.229, 0.224, 0.225},
	}
}
