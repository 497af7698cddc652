package services_test

import (
	"errors"
	"strings"
	"testing"

	"vidforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrMediaProcessing, "STITCHING", "xfade", "combine failed", base)
	if !errors.Is(err, services.ErrMediaProcessing) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"STITCHING", "xfade", "combine failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestDetailsExtractsFields(t *testing.T) {
	err := services.Wrap(services.ErrStorage, "UPLOADING", "upload", "final video", errors.New("503"))
	wrapped := errors.Join(errors.New("outer"), err)
	d := services.Details(wrapped)
	if d.Kind != "storage" || d.Stage != "UPLOADING" || d.Operation != "upload" || d.Cause != "503" {
		t.Fatalf("unexpected details: %+v", d)
	}

	plain := services.Details(errors.New("plain"))
	if plain.Kind != "unknown" || plain.Message != "plain" {
		t.Fatalf("unexpected plain details: %+v", plain)
	}
}

func TestValidationErrorMarkers(t *testing.T) {
	v := &services.ValidationError{Subject: "veo-3.0-fast"}
	if v.Err() != nil {
		t.Fatal("expected nil error when empty")
	}
	v.Add("durationSeconds", "must be between 4 and 8")
	err := v.Err()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if errors.Is(err, services.ErrIncompatible) {
		t.Fatal("plain validation error must not match incompatible")
	}

	v.AddIncompatible("aspectRatio", "1:1 not supported")
	err = v.Err()
	if !errors.Is(err, services.ErrIncompatible) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected both markers, got %v", err)
	}
	if services.Kind(err) != "incompatible_capability" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
	fields := v.FieldMessages()
	if fields["aspectRatio"] == "" || fields["durationSeconds"] == "" {
		t.Fatalf("unexpected field messages: %v", fields)
	}
}
