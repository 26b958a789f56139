package common

import "testing"

func TestDetectEntity(t *testing.T) {
	cases := []struct {
		text string
		want Entity
	}{
		{"サイノカフェの営業時間は？", EntitySaino},
		{"エンジニアカフェはどこですか", EntityEngineer},
		{"Is the meeting room free?", EntityMeetingRoom},
		{"会議室を予約したい", EntityMeetingRoom},
		{"今日の天気は？", EntityGeneral},
		// saino 标记优先于 engineer 的宽泛标记
		{"サイノカフェのエンジニア向けイベント", EntitySaino},
	}
	for _, c := range cases {
		if got := DetectEntity(c.text); got != c.want {
			t.Errorf("DetectEntity(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestDetectEntity_MultipleFields(t *testing.T) {
	if got := DetectEntity("営業時間", "サイノカフェ案内", "cafe"); got != EntitySaino {
		t.Errorf("title should contribute: %v", got)
	}
}

func TestEntityDisplayName(t *testing.T) {
	if EntityDisplayName(EntityEngineer, LangJA) != "エンジニアカフェ" {
		t.Error("engineer ja name")
	}
	if EntityDisplayName(EntitySaino, LangEN) != "Saino Cafe" {
		t.Error("saino en name")
	}
	if EntityDisplayName(EntityGeneral, LangJA) != "general" {
		t.Error("unknown entity falls back to raw value")
	}
}

func TestPipelineError(t *testing.T) {
	err := NewPipelineError("retrieve", "backend down", ErrRetrievalFailed)
	if !IsPipelineError(err) {
		t.Error("IsPipelineError")
	}
	pe, ok := GetPipelineError(err)
	if !ok || pe.Stage != "retrieve" {
		t.Errorf("GetPipelineError: %+v %v", pe, ok)
	}
}
