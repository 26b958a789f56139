package emotion

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	if Normalize("joyful") != Happy {
		t.Error("joyful should normalize to happy")
	}
	if Normalize("CALM") != Relaxed {
		t.Error("CALM should normalize to relaxed")
	}
	if Normalize("驚き") != Surprised {
		t.Error("驚き should normalize to surprised")
	}
	if Normalize("whatever") != Neutral {
		t.Error("unknown should normalize to neutral")
	}
}

func TestParse(t *testing.T) {
	e, rest, ok := Parse("[happy] こんにちは")
	if !ok || e != Happy || rest != "こんにちは" {
		t.Errorf("Parse: e=%v rest=%q ok=%v", e, rest, ok)
	}
	e, rest, ok = Parse("no marker here")
	if ok || e != Neutral || rest != "no marker here" {
		t.Errorf("Parse without marker: e=%v rest=%q ok=%v", e, rest, ok)
	}
	// 未知括号前缀不是情绪标记
	_, rest, ok = Parse("[10:00] 開館です")
	if ok || rest != "[10:00] 開館です" {
		t.Errorf("bracketed time should not parse: rest=%q ok=%v", rest, ok)
	}
}

func TestEnsure_InjectsFallback(t *testing.T) {
	e, text := Ensure("営業時間は9時からです", Relaxed)
	if e != Relaxed {
		t.Errorf("emotion: %v", e)
	}
	if !strings.HasPrefix(text, "[relaxed] ") {
		t.Errorf("text: %q", text)
	}
}

func TestEnsure_CollapsesDuplicates(t *testing.T) {
	e, text := Ensure("[happy][joyful] いらっしゃいませ", Neutral)
	if e != Happy {
		t.Errorf("emotion: %v", e)
	}
	if text != "[happy] いらっしゃいませ" {
		t.Errorf("text: %q", text)
	}
	// 恰好一个标记
	if strings.Count(text, "[") != 1 {
		t.Errorf("marker count: %q", text)
	}
}

func TestEnsure_NormalizesAlias(t *testing.T) {
	e, text := Ensure("[curious] どちらのカフェですか？", Neutral)
	if e != Surprised {
		t.Errorf("emotion: %v", e)
	}
	if !strings.HasPrefix(text, "[surprised] ") {
		t.Errorf("text: %q", text)
	}
}

func TestStripAll(t *testing.T) {
	out := StripAll("[happy] hello [calm] world")
	if strings.Contains(out, "[") {
		t.Errorf("StripAll left markers: %q", out)
	}
}
