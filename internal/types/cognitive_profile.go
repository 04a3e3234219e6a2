package types

import (
	"encoding/json"
	"strings"
)

// VAKScores is the canonical learning-style vector. Components are
// non-negative and either sum to 1 or are all zero (style unknown).
type VAKScores struct {
	Visual         float64 `json:"visual"`
	Auditory       float64 `json:"auditory"`
	ReadingWriting float64 `json:"reading_writing"`
	Kinesthetic    float64 `json:"kinesthetic"`
}

func (v VAKScores) Sum() float64 {
	return v.Visual + v.Auditory + v.ReadingWriting + v.Kinesthetic
}

// Normalized scales the vector to sum 1. A zero vector stays zero.
func (v VAKScores) Normalized() VAKScores {
	s := v.Sum()
	if s <= 0 {
		return VAKScores{}
	}
	return VAKScores{
		Visual:         v.Visual / s,
		Auditory:       v.Auditory / s,
		ReadingWriting: v.ReadingWriting / s,
		Kinesthetic:    v.Kinesthetic / s,
	}
}

// Dot is the alignment between two normalized style vectors.
func (v VAKScores) Dot(o VAKScores) float64 {
	return v.Visual*o.Visual + v.Auditory*o.Auditory + v.ReadingWriting*o.ReadingWriting + v.Kinesthetic*o.Kinesthetic
}

// CognitiveProfile is the canonical, typed view of a student's profile blob.
// The raw blob never travels past ParseCognitiveProfile.
type CognitiveProfile struct {
	VAK              VAKScores `json:"vak"`
	Strengths        []string  `json:"strengths"`
	Difficulties     []string  `json:"difficulties"`
	Dyslexia         bool      `json:"dyslexia"`
	ADHD             bool      `json:"adhd"`
	VisualImpairment bool      `json:"visual_impairment"`
}

func (p CognitiveProfile) IsEmpty() bool {
	return p.VAK.Sum() == 0 && len(p.Strengths) == 0 && len(p.Difficulties) == 0 &&
		!p.Dyslexia && !p.ADHD && !p.VisualImpairment
}

func (p CognitiveProfile) HasDifficulty(name string) bool {
	return containsFold(p.Difficulties, name)
}

func (p CognitiveProfile) HasStrength(name string) bool {
	return containsFold(p.Strengths, name)
}

// ParseCognitiveProfile normalizes a raw profile blob into the canonical
// struct. It probes both storage shapes found in the wild: the flat legacy one
// ("learning_style", "cognitive_difficulties", "diagnosis") and the nested one
// ("profile.vak_scores", "profile.difficulties", "profile.accessibility").
// Double-encoded blobs (a JSON string holding JSON) are unwrapped. Malformed
// input yields the zero profile; this function never fails.
func ParseCognitiveProfile(raw []byte) CognitiveProfile {
	var out CognitiveProfile
	if len(raw) == 0 {
		return out
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Source systems sometimes store the document as a quoted string.
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return out
		}
		if err2 := json.Unmarshal([]byte(s), &doc); err2 != nil {
			return out
		}
	}

	nested, _ := doc["profile"].(map[string]interface{})

	if ls, ok := doc["learning_style"].(map[string]interface{}); ok {
		out.VAK = vakFromMap(ls)
	} else if nested != nil {
		if vs, ok := nested["vak_scores"].(map[string]interface{}); ok {
			out.VAK = vakFromMap(vs)
		}
	}

	out.Difficulties = firstStringList(doc, nested, "cognitive_difficulties", "difficulties")
	out.Strengths = firstStringList(doc, nested, "cognitive_strengths", "strengths")

	flags := stringListFromAny(doc["diagnosis"])
	for _, d := range flags {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "dislexia", "dyslexia":
			out.Dyslexia = true
		case "tdah", "adhd":
			out.ADHD = true
		case "discapacidad_visual", "visual_impairment":
			out.VisualImpairment = true
		}
	}
	if nested != nil {
		if acc, ok := nested["accessibility"].(map[string]interface{}); ok {
			out.Dyslexia = out.Dyslexia || boolFromAny(acc["dyslexia"])
			out.ADHD = out.ADHD || boolFromAny(acc["adhd"])
			out.VisualImpairment = out.VisualImpairment || boolFromAny(acc["visual_impairment"])
		}
	}

	return out
}

func vakFromMap(m map[string]interface{}) VAKScores {
	v := VAKScores{
		Visual:      floatFromAny(m["visual"]),
		Auditory:    floatFromAny(m["auditory"]),
		Kinesthetic: floatFromAny(m["kinesthetic"]),
	}
	if rw, ok := m["reading_writing"]; ok {
		v.ReadingWriting = floatFromAny(rw)
	} else {
		v.ReadingWriting = floatFromAny(m["reading"])
	}
	return v.Normalized()
}

func firstStringList(doc, nested map[string]interface{}, flatKey, nestedKey string) []string {
	if vals := stringListFromAny(doc[flatKey]); len(vals) > 0 {
		return vals
	}
	if nested != nil {
		return stringListFromAny(nested[nestedKey])
	}
	return nil
}

func stringListFromAny(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func floatFromAny(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return t
	case json.Number:
		f, _ := t.Float64()
		if f < 0 {
			return 0
		}
		return f
	default:
		return 0
	}
}

func boolFromAny(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func containsFold(list []string, name string) bool {
	for _, e := range list {
		if strings.EqualFold(strings.TrimSpace(e), name) {
			return true
		}
	}
	return false
}
