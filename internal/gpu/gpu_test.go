package gpu

import (
	"context"
	"errors"
	"testing"

	"videoenhancer/internal/mocks"
)

func stubCards(t *testing.T, names []string, err error) {
	t.Helper()
	original := detectCards
	detectCards = func() ([]string, error) { return names, err }
	t.Cleanup(func() { detectCards = original })
}

func TestListPrefersNvidiaSMI(t *testing.T) {
	stubCards(t, []string{"Intel UHD 630", "NVIDIA GA102"}, nil)
	m := mocks.NewMockRunner()
	m.Responses["nvidia-smi"] = []byte("0, NVIDIA GeForce RTX 3080\n1, NVIDIA GeForce GTX 1060\n")

	devices, err := List(context.Background(), m)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(devices) != 2 || devices[1].Index != 1 || devices[1].Name != "NVIDIA GeForce GTX 1060" {
		t.Errorf("Unexpected devices: %v", devices)
	}
	if calls := m.Calls("nvidia-smi"); len(calls) != 1 || calls[0] != "nvidia-smi --query-gpu=index,name --format=csv,noheader" {
		t.Errorf("Unexpected call: %v", calls)
	}
}

func TestListFallsBackToGHW(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mocks.MockRunner)
	}{
		{"nvidia-smi missing", func(m *mocks.MockRunner) { m.Errors["nvidia-smi"] = errors.New("executable file not found") }},
		{"nvidia-smi empty", func(m *mocks.MockRunner) { m.Responses["nvidia-smi"] = []byte("\n") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubCards(t, []string{"Intel UHD 630", "AMD Radeon RX 6600"}, nil)
			m := mocks.NewMockRunner()
			tt.setup(m)

			devices, err := List(context.Background(), m)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			// numbered by position, not by PCI or DRM index
			if len(devices) != 2 || devices[0].Index != 0 || devices[1].Index != 1 || devices[1].Name != "AMD Radeon RX 6600" {
				t.Errorf("Unexpected devices: %v", devices)
			}
		})
	}
}

func TestListNoDevices(t *testing.T) {
	tests := []struct {
		name     string
		cards    []string
		cardsErr error
	}{
		{"no cards", nil, nil},
		{"ghw failure", nil, errors.New("no pci database")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubCards(t, tt.cards, tt.cardsErr)
			m := mocks.NewMockRunner()
			m.Errors["nvidia-smi"] = errors.New("executable file not found")

			if _, err := List(context.Background(), m); !errors.Is(err, ErrNoDevices) {
				t.Errorf("Expected ErrNoDevices, got %v", err)
			}
		})
	}
}

func TestParseNvidiaSMI(t *testing.T) {
	devices := ParseNvidiaSMI("0, Tesla T4\n\ngarbage\nx, bad index\n 2 , A100 \n")
	if len(devices) != 2 || devices[0].Name != "Tesla T4" || devices[1].Index != 2 || devices[1].Name != "A100" {
		t.Errorf("Unexpected devices: %v", devices)
	}
}

func TestChoices(t *testing.T) {
	choices := Choices([]Device{{Index: 0, Name: "Intel UHD 630"}})
	expected := []string{AutoChoice, "0: Intel UHD 630", CPUChoice}
	if len(choices) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, choices)
	}
	for i := range expected {
		if choices[i] != expected[i] {
			t.Errorf("Expected %q at %d, got %q", expected[i], i, choices[i])
		}
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		choice  string
		want    *int
		wantErr bool
	}{
		{AutoChoice, nil, false},
		{"", nil, false},
		{CPUChoice, intPtr(-1), false},
		{"1: NVIDIA GeForce GTX 1060", intPtr(1), false},
		{"fastest", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.choice, func(t *testing.T) {
			got, err := ParseChoice(tt.choice)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChoice(%q) error = %v", tt.choice, err)
			}
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("ParseChoice(%q) = %v, want %v", tt.choice, got, tt.want)
			}
		})
	}
}

func intPtr(i int) *int { return &i }
