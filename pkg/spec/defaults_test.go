package spec

import (
	"testing"
)

func TestCheckPropertyDefinition(t *testing.T) {
	tests := []struct {
		name    string
		prop    PropertyDefinition
		wantErr bool
	}{
		{"text with string default", PropertyDefinition{Name: "label", Kind: PropText, Default: "hi"}, false},
		{"text with numeric default", PropertyDefinition{Name: "label", Kind: PropText, Default: 3.0}, true},
		{"number", PropertyDefinition{Name: "gain", Kind: PropNumber, Default: 1.5}, false},
		{"number with string default", PropertyDefinition{Name: "gain", Kind: PropNumber, Default: "loud"}, true},
		{"integer", PropertyDefinition{Name: "voices", Kind: PropInteger, Default: 4.0}, false},
		{"integer with fraction", PropertyDefinition{Name: "voices", Kind: PropInteger, Default: 4.5}, true},
		{"bool", PropertyDefinition{Name: "bypass", Kind: PropBool, Default: true}, false},
		{"bool with string default", PropertyDefinition{Name: "bypass", Kind: PropBool, Default: "yes"}, true},
		{"unknown kind", PropertyDefinition{Name: "x", Kind: "enum"}, true},
		{"select", PropertyDefinition{Name: "wave", Kind: PropSelect, Values: []any{"sine", "saw"}, Default: "saw"}, false},
		{"select default outside values", PropertyDefinition{Name: "wave", Kind: PropSelect, Values: []any{"sine", "saw"}, Default: "square"}, true},
		{"select without values", PropertyDefinition{Name: "wave", Kind: PropSelect}, true},
		{"slider", PropertyDefinition{Name: "mix", Kind: PropSlider, Default: 0.5, Min: floatPtr(0), Max: floatPtr(1)}, false},
		{"slider default above max", PropertyDefinition{Name: "mix", Kind: PropSlider, Default: 2.0, Min: floatPtr(0), Max: floatPtr(1)}, true},
		{"slider without range", PropertyDefinition{Name: "mix", Kind: PropSlider, Default: 0.5}, true},
		{"slider without default", PropertyDefinition{Name: "mix", Kind: PropSlider, Min: floatPtr(0), Max: floatPtr(1)}, true},
		{"list", PropertyDefinition{Name: "taps", Kind: PropList, Dtype: "number", Default: []any{1.0, 2.0}}, false},
		{"list element breaks dtype", PropertyDefinition{Name: "taps", Kind: PropList, Dtype: "number", Default: []any{1.0, "x"}}, true},
		{"list default not an array", PropertyDefinition{Name: "taps", Kind: PropList, Default: "1,2"}, true},
		{"hex", PropertyDefinition{Name: "mask", Kind: PropHex, Default: "0xFF"}, false},
		{"hex without prefix", PropertyDefinition{Name: "mask", Kind: PropHex, Default: "FF"}, true},
		{"hex above max", PropertyDefinition{Name: "mask", Kind: PropHex, Default: "0x100", Max: floatPtr(255)}, true},
		{"constant", PropertyDefinition{Name: "version", Kind: PropConstant, Default: "v1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPropertyDefinition(&tt.prop)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckPropertyDefinition() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckPropertyValue(t *testing.T) {
	p := PropertyDefinition{Name: "wave", Kind: PropSelect, Values: []any{"sine", "saw"}, Default: "sine"}

	if err := CheckPropertyValue(&p, "saw"); err != nil {
		t.Errorf("valid value rejected: %v", err)
	}
	if err := CheckPropertyValue(&p, "square"); err == nil {
		t.Error("invalid value accepted")
	}

	// The original definition must not change.
	if p.Default != "sine" {
		t.Errorf("CheckPropertyValue mutated the definition: default = %v", p.Default)
	}
}

func TestCheckPropertyValueNumericEquivalence(t *testing.T) {
	// JSON decodes numbers as float64; an int value for an int-typed
	// select must still match.
	p := PropertyDefinition{Name: "size", Kind: PropSelect, Values: []any{1.0, 2.0, 4.0}}
	if err := CheckPropertyValue(&p, 2); err != nil {
		t.Errorf("numeric equivalence not honored: %v", err)
	}
}
