package normalize

import "testing"

func TestStages(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) string
		input string
		want  string
	}{
		{"trim and unify", trimAndUnify, " 台中市台灣大道 ", "臺中市臺灣大道"},
		{"strip three digits", stripPostalPrefix, "106 臺北市", "臺北市"},
		{"strip five digits", stripPostalPrefix, "10617臺北市", "臺北市"},
		{"strip four digits keeps one", stripPostalPrefix, "1061臺北市", "1臺北市"},
		{"strip not anchored", stripPostalPrefix, "臺北市106", "臺北市106"},
		{"strip two digits untouched", stripPostalPrefix, "10臺北市", "10臺北市"},
		{"half width letters", toHalfWidth, "ＡＢｃ", "ABc"},
		{"half width tilde", toHalfWidth, "１～３", "1~3"},
		{"half width space", toHalfWidth, "Ａ　Ｂ", "A B"},
		{"cjk punctuation kept", toHalfWidth, "甲、乙。", "甲、乙。"},
		{"floor markers", unifyFloorMarker, "3F之1f", "3樓之1樓"},
		{"separators", unifySeparators, "1-2~3", "1之2之3"},
		{"neighborhood", dropNeighborhood, "福安里3鄰", "福安里"},
		{"neighborhood three digits", dropNeighborhood, "123鄰", "1"},
		{"segment", convertNumerals, "忠孝東路四段", "忠孝東路4段"},
		{"floor", convertNumerals, "十樓", "10樓"},
		{"number", convertNumerals, "一百二十三號", "123號"},
		{"arabic untouched", convertNumerals, "4段10樓", "4段10樓"},
		{"continuation", convertNumerals, "5號之三", "5號之3"},
		{"continuation at floor", convertNumerals, "5號之三樓", "5號之3樓"},
		{"several continuations", convertNumerals, "之一之二", "之1之2"},
		{"bare continuation", convertNumerals, "之", "之"},
		{"road name numerals kept", convertNumerals, "建國二路", "建國二路"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input); got != tt.want {
				t.Errorf("%s(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
			}
		})
	}
}
