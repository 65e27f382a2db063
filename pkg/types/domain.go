package types

// Model represents a cached model artifact that a runtime can load.
type Model struct {
	// Stable identifier, usually the hub-style "org/name" of the model.
	// example: Xenova/LaMini-Flan-T5-248M
	ID string `json:"id" example:"Xenova/LaMini-Flan-T5-248M"`
	// Human-friendly name (file name of the artifact).
	// example: model_quantized.gguf
	Name string `json:"name" example:"model_quantized.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/.cache/oncoqa/Xenova/LaMini-Flan-T5-248M/model_quantized.gguf
	Path string `json:"path" example:"/home/user/.cache/oncoqa/Xenova/LaMini-Flan-T5-248M/model_quantized.gguf"`
	// Quantization variant parsed from the file name, empty for full precision.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
}

// Quantized reports whether the artifact is a reduced-precision variant.
func (m Model) Quantized() bool { return m.Quant != "" }
