// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package emotion 固定情绪词汇表与文本内 [emotion] 标记的解析。
// 下游语音与 avatar 渲染只认这套词汇，所有面向用户的文本在此归一。
package emotion

import "strings"

// Emotion 固定词汇表中的一个情绪
type Emotion string

const (
	Neutral   Emotion = "neutral"
	Happy     Emotion = "happy"
	Sad       Emotion = "sad"
	Angry     Emotion = "angry"
	Relaxed   Emotion = "relaxed"
	Surprised Emotion = "surprised"
)

// All 全部合法情绪，顺序固定
var All = []Emotion{Neutral, Happy, Sad, Angry, Relaxed, Surprised}

// aliases 生成器常见拼写到固定词汇的映射；未命中返回 Neutral
var aliases = map[string]Emotion{
	"neutral":   Neutral,
	"happy":     Happy,
	"joyful":    Happy,
	"joy":       Happy,
	"glad":      Happy,
	"cheerful":  Happy,
	"excited":   Happy,
	"sad":       Sad,
	"sorry":     Sad,
	"apologetic": Sad,
	"angry":     Angry,
	"annoyed":   Angry,
	"relaxed":   Relaxed,
	"calm":      Relaxed,
	"gentle":    Relaxed,
	"friendly":  Relaxed,
	"surprised": Surprised,
	"surprise":  Surprised,
	"curious":   Surprised,
	"confused":  Surprised,
	// 生成器偶尔输出日文标签
	"喜び": Happy,
	"悲しみ": Sad,
	"怒り": Angry,
	"驚き": Surprised,
	"安心": Relaxed,
}

// IsValid 是否为词汇表内情绪
func IsValid(e Emotion) bool {
	for _, v := range All {
		if v == e {
			return true
		}
	}
	return false
}

// Normalize 归一任意拼写到固定词汇表；未知拼写归为 Neutral
func Normalize(s string) Emotion {
	key := strings.ToLower(strings.TrimSpace(s))
	if e, ok := aliases[strings.TrimSpace(s)]; ok {
		return e
	}
	if e, ok := aliases[key]; ok {
		return e
	}
	return Neutral
}

// Marker 返回文本内标记形式，如 "[happy]"
func (e Emotion) Marker() string {
	return "[" + string(e) + "]"
}

// Parse 从文本开头提取一个 [emotion] 标记。
// 返回归一后的情绪、去掉该标记的剩余文本、是否命中。
func Parse(text string) (Emotion, string, bool) {
	trimmed := strings.TrimLeft(text, " \t\n")
	if !strings.HasPrefix(trimmed, "[") {
		return Neutral, text, false
	}
	end := strings.Index(trimmed, "]")
	if end <= 1 || end > 24 {
		return Neutral, text, false
	}
	raw := trimmed[1:end]
	if !knownAlias(raw) {
		return Neutral, text, false
	}
	rest := strings.TrimLeft(trimmed[end+1:], " ")
	return Normalize(raw), rest, true
}

// knownAlias 该拼写是否在别名表中（未知括号前缀不视为情绪标记）
func knownAlias(raw string) bool {
	if _, ok := aliases[strings.TrimSpace(raw)]; ok {
		return true
	}
	_, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// StripAll 去掉文本中所有已知情绪标记（含别名拼写）
func StripAll(text string) string {
	out := text
	for alias := range aliases {
		out = strings.ReplaceAll(out, "["+alias+"]", "")
	}
	return strings.TrimSpace(out)
}

// Ensure 保证文本以恰好一个合法情绪标记开头。
// 已有标记时折叠重复并归一拼写；没有标记时注入 fallback。
func Ensure(text string, fallback Emotion) (Emotion, string) {
	if !IsValid(fallback) {
		fallback = Neutral
	}
	e, rest, ok := Parse(text)
	if !ok {
		return fallback, fallback.Marker() + " " + strings.TrimSpace(text)
	}
	// 折叠紧跟的重复标记，如 "[happy][happy] こんにちは"
	for {
		next, r, again := Parse(rest)
		if !again {
			break
		}
		e = next
		rest = r
	}
	return e, e.Marker() + " " + strings.TrimSpace(rest)
}
