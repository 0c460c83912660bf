package sampling

// familyOverlay narrows Defaults() for a recognized model family: its own
// stop tokens/sequences replace the generic ones, and its temperature/top-p
// bounds clamp whatever the caller configured on top.
type familyOverlay struct {
	stopTokenIDs  []int64
	stopSequences []string
	minTemp       float64
	maxTopP       float64
}

// families is the small tagged-dispatch table keyed by pkg/types.Model's
// Family field (e.g. "llama3", "qwen2"). An unrecognized or empty family
// falls back to Defaults() unmodified.
var families = map[string]familyOverlay{
	"llama3": {
		stopTokenIDs:  []int64{128001, 128009},
		stopSequences: []string{"<|eot_id|>", "<|end_of_text|>"},
		minTemp:       0.1,
		maxTopP:       0.95,
	},
	"qwen2": {
		stopTokenIDs:  []int64{151643, 151645},
		stopSequences: []string{"<|endoftext|>", "<|im_end|>"},
		minTemp:       0.1,
		maxTopP:       0.95,
	},
	"mistral": {
		stopTokenIDs:  []int64{2},
		stopSequences: []string{"</s>"},
		minTemp:       0.1,
		maxTopP:       0.95,
	},
	"gemma2": {
		stopTokenIDs:  []int64{1, 107},
		stopSequences: []string{"<end_of_turn>"},
		minTemp:       0.1,
		maxTopP:       0.95,
	},
}

// DefaultsForFamily returns Defaults() with the named family's stop tokens,
// stop sequences, and temperature/top-p bounds applied. An empty or
// unrecognized family returns Defaults() unchanged.
func DefaultsForFamily(family string) Config {
	cfg := Defaults()
	return ApplyFamilyOverlay(cfg, family)
}

// ApplyFamilyOverlay narrows an already-built Config with the named
// family's overlay: replaces its stop tokens/sequences outright (a model
// family's chat template defines its own turn-end markers, so the generic
// defaults never apply alongside them) and clamps temperature/top-p into
// the family's supported range.
func ApplyFamilyOverlay(cfg Config, family string) Config {
	overlay, ok := families[family]
	if !ok {
		return cfg
	}
	cfg.StopTokenIDs = overlay.stopTokenIDs
	cfg.StopSequences = overlay.stopSequences
	if cfg.Temperature < overlay.minTemp {
		cfg.Temperature = overlay.minTemp
	}
	if cfg.TopP > overlay.maxTopP {
		cfg.TopP = overlay.maxTopP
	}
	return cfg
}
