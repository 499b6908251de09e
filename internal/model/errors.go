package model

import "errors"

var (
	// ErrModelLoad means the model or the label table could not be loaded.
	// The classifier is unusable until restarted.
	ErrModelLoad = errors.New("model load failed")
	// ErrInvalidImage covers undecodable images and zero-sized bitmaps.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInference wraps any failure reported by the inference engine.
	ErrInference = errors.New("inference failed")
	// ErrEmptyScores means the engine returned no class scores.
	ErrEmptyScores = errors.New("model returned no scores")
)
