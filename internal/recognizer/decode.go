package recognizer

import (
	"log/slog"
	"strconv"
)

// decodeSpans reconciles the engine payload into spans. Known shapes, tried
// in priority order:
//
//  1. a mapping exposing parallel text and score sequences
//     ("texts"/"scores" or "rec_texts"/"rec_scores")
//  2. a sequence of per-item objects with text/score fields
//     ("text"/"score" or "transcription"/"confidence")
//  3. a sequence of (text, score) pairs
//
// A nil payload decodes to zero spans. ok is false only when the payload is
// non-nil and matches none of the shapes; the caller decides how loudly to
// complain. Parse failures never leak past this function.
func decodeSpans(payload any) ([]Span, bool) {
	if payload == nil {
		return nil, true
	}
	if spans, ok := decodeParallelMap(payload); ok {
		return spans, true
	}
	if spans, ok := decodeObjectList(payload); ok {
		return spans, true
	}
	if spans, ok := decodePairList(payload); ok {
		return spans, true
	}
	return nil, false
}

func decodeParallelMap(payload any) ([]Span, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}

	texts, ok := lookupSequence(m, "texts", "rec_texts")
	if !ok {
		return nil, false
	}
	scores, ok := lookupSequence(m, "scores", "rec_scores")
	if !ok {
		return nil, false
	}
	if len(texts) != len(scores) {
		slog.Debug("Parallel recognizer sequences have mismatched lengths",
			"texts", len(texts), "scores", len(scores))
		return nil, false
	}

	spans := make([]Span, 0, len(texts))
	for i := range texts {
		text, tok := coerceString(texts[i])
		score, sok := coerceFloat(scores[i])
		if !tok || !sok {
			continue
		}
		spans = append(spans, Span{Text: text, Confidence: clampConfidence(score)})
	}
	return spans, true
}

func decodeObjectList(payload any) ([]Span, bool) {
	items, ok := toAnySlice(payload)
	if !ok {
		return nil, false
	}

	spans := make([]Span, 0, len(items))
	matchedAny := len(items) == 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		textVal, tok := lookupField(obj, "text", "transcription")
		scoreVal, sok := lookupField(obj, "score", "confidence")
		if !tok || !sok {
			return nil, false
		}
		matchedAny = true
		text, tok := coerceString(textVal)
		score, sok := coerceFloat(scoreVal)
		if !tok || !sok {
			continue
		}
		spans = append(spans, Span{Text: text, Confidence: clampConfidence(score)})
	}
	if !matchedAny {
		return nil, false
	}
	return spans, true
}

func decodePairList(payload any) ([]Span, bool) {
	items, ok := toAnySlice(payload)
	if !ok {
		return nil, false
	}

	spans := make([]Span, 0, len(items))
	for _, item := range items {
		pair, ok := toAnySlice(item)
		if !ok || len(pair) != 2 {
			return nil, false
		}
		text, tok := coerceString(pair[0])
		score, sok := coerceFloat(pair[1])
		if !tok || !sok {
			continue
		}
		spans = append(spans, Span{Text: text, Confidence: clampConfidence(score)})
	}
	return spans, true
}

// lookupSequence finds the first present key and coerces it to a slice.
func lookupSequence(m map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if v, present := m[k]; present {
			return toAnySlice(v)
		}
	}
	return nil, false
}

func lookupField(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, present := m[k]; present {
			return v, true
		}
	}
	return nil, false
}

// toAnySlice widens concrete slice types into []any.
func toAnySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float32:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	case int64:
		return float64(f), true
	case string:
		parsed, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
