// Package gemini provides a chatbridge typed backend for the Google Gemini API via the
// genai SDK. Both calls return *genai.GenerateContentResponse; adapter.NormalizeText
// reads the text parts of the first candidate.
//
// System messages become the system instruction. Sampling floats are narrowed to
// float32 and MaxOutputTokens is clamped to the int32 range.
package gemini
