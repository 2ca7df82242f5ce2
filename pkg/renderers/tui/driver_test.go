package tui

import (
	"context"
	"errors"
	"testing"
)

func TestSurveyValidator_AdaptsStringCallback(t *testing.T) {
	sentinel := errors.New("name is required")
	v := surveyValidator(func(s string) error {
		if s == "" {
			return sentinel
		}
		return nil
	})

	if err := v("Forge GTX"); err != nil {
		t.Fatalf("valid answer rejected: %v", err)
	}
	if err := v(""); !errors.Is(err, sentinel) {
		t.Fatalf("empty answer: want validator error, got %v", err)
	}
	// survey can hand back non-string answers; they validate as empty input.
	if err := v(42); !errors.Is(err, sentinel) {
		t.Fatalf("non-string answer: want validator error, got %v", err)
	}
}

func TestSurveyDriver_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newSurveyDriver()
	if _, err := d.Input(ctx, InputConfig{Message: "Name"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Input: want context.Canceled, got %v", err)
	}
	if _, err := d.Confirm(ctx, ConfirmConfig{Message: "Sure?"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Confirm: want context.Canceled, got %v", err)
	}
	if _, err := d.Select(ctx, SelectConfig{Message: "Pick"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Select: want context.Canceled, got %v", err)
	}
}
