// Package mocks provides mock implementations for testing
package mocks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// MockRunner scripts external commands for testing
type MockRunner struct {
	mu sync.Mutex

	// Responses maps "name arg1 arg2..." or just "name" to stdout
	Responses map[string][]byte
	// Errors maps "name arg1 arg2..." or just "name" to a failure
	Errors map[string]error
	// ErrorQueue pops one error per call to name, then falls through to Errors/Responses
	ErrorQueue map[string][]error
	// Hooks simulate a program's side effects (for example writing frame files)
	Hooks map[string]func(args []string) error
	// AvailableCommands controls LookPath; unknown commands are available
	AvailableCommands map[string]bool
	CallLog           []string
}

func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses:         make(map[string][]byte),
		Errors:            make(map[string]error),
		ErrorQueue:        make(map[string][]error),
		Hooks:             make(map[string]func(args []string) error),
		AvailableCommands: make(map[string]bool),
		CallLog:           make([]string, 0),
	}
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.call(ctx, name, args)
	return err
}

func (m *MockRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.call(ctx, name, args)
}

func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if available, exists := m.AvailableCommands[name]; exists && !available {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/usr/bin/" + name, nil
}

func (m *MockRunner) call(ctx context.Context, name string, args []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))

	m.mu.Lock()
	m.CallLog = append(m.CallLog, cmd)
	if queue := m.ErrorQueue[name]; len(queue) > 0 {
		m.ErrorQueue[name] = queue[1:]
		m.mu.Unlock()
		return nil, queue[0]
	}
	hook := m.Hooks[name]
	err, hasErr := m.Errors[cmd]
	if !hasErr {
		err, hasErr = m.Errors[name]
	}
	response, hasResponse := m.Responses[cmd]
	if !hasResponse {
		response, hasResponse = m.Responses[name]
	}
	m.mu.Unlock()

	if hasErr {
		return nil, err
	}
	if hook != nil {
		if err := hook(args); err != nil {
			return nil, err
		}
	}
	if hasResponse {
		return response, nil
	}
	return []byte{}, nil
}

// Calls returns logged commands starting with prefix
func (m *MockRunner) Calls(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []string
	for _, c := range m.CallLog {
		if strings.HasPrefix(c, prefix) {
			calls = append(calls, c)
		}
	}
	return calls
}

// ArgValue returns the value following flag in args
func ArgValue(args []string, flag string) (string, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

// MockPrompter provides scripted answers to interactive prompts
type MockPrompter struct {
	InputResponses   map[string]string
	SelectResponses  map[string]string
	ConfirmResponses map[string]bool
	Errors           map[string]error
	CallLog          []string
}

func NewMockPrompter() *MockPrompter {
	return &MockPrompter{
		InputResponses:   make(map[string]string),
		SelectResponses:  make(map[string]string),
		ConfirmResponses: make(map[string]bool),
		Errors:           make(map[string]error),
		CallLog:          make([]string, 0),
	}
}

func (m *MockPrompter) Input(label, defaultValue string, validate func(string) error) (string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Input: %s (default: %s)", label, defaultValue))

	if err, exists := m.Errors[label]; exists {
		return "", err
	}

	value := defaultValue
	if response, exists := m.InputResponses[label]; exists {
		value = response
	}
	if validate != nil {
		if err := validate(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func (m *MockPrompter) Select(label string, items []string) (int, string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Select: %s", label))

	if err, exists := m.Errors[label]; exists {
		return -1, "", err
	}

	if len(items) == 0 {
		return -1, "", errors.New("no items provided")
	}

	if response, exists := m.SelectResponses[label]; exists {
		for i, item := range items {
			if item == response {
				return i, item, nil
			}
		}
		return -1, "", fmt.Errorf("scripted answer %q not among items", response)
	}

	return 0, items[0], nil
}

func (m *MockPrompter) Confirm(label string, defaultValue bool) (bool, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Confirm: %s", label))

	if err, exists := m.Errors[label]; exists {
		return false, err
	}

	if response, exists := m.ConfirmResponses[label]; exists {
		return response, nil
	}

	return defaultValue, nil
}
