package model

// TokenUsage counts tokens of one or more model calls, split by input modality.
type TokenUsage struct {
	InputTextTokens  int `json:"input_text_tokens"`
	InputImageTokens int `json:"input_image_tokens"`
	InputAudioTokens int `json:"input_audio_tokens"`
	OutputTokens     int `json:"output_tokens"`
}

// Add returns the sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTextTokens:  u.InputTextTokens + o.InputTextTokens,
		InputImageTokens: u.InputImageTokens + o.InputImageTokens,
		InputAudioTokens: u.InputAudioTokens + o.InputAudioTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
	}
}

// Input returns all input tokens.
func (u TokenUsage) Input() int {
	return u.InputTextTokens + u.InputImageTokens + u.InputAudioTokens
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.Input() + u.OutputTokens
}
