package serial

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule tells a Simulator how to answer one command.
type Rule struct {
	Command string        `yaml:"command"`
	Reply   []string      `yaml:"reply"`
	Delay   time.Duration `yaml:"-"`
	DelayMS int           `yaml:"delay_ms"`
}

// Simulator is a scripted device. Commands are matched after trimming the line ending.
type Simulator struct {
	Hub

	mu       sync.Mutex
	rules    map[string]Rule
	written  []string
	writeErr error
	timers   []*time.Timer
	closed   bool
}

// NewSimulator creates a device that answers according to rules. Unknown commands get no reply.
func NewSimulator(rules ...Rule) *Simulator {
	s := &Simulator{rules: make(map[string]Rule)}
	for _, r := range rules {
		s.On(r)
	}
	return s
}

// LoadScript reads rules from a YAML list of {command, reply, delay_ms}.
func LoadScript(path string) (*Simulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read simulator script: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse simulator script %s: %w", path, err)
	}
	for i := range rules {
		rules[i].Delay = time.Duration(rules[i].DelayMS) * time.Millisecond
	}
	return NewSimulator(rules...), nil
}

// On adds or replaces the rule for r.Command.
func (s *Simulator) On(r Rule) {
	if r.Delay == 0 && r.DelayMS > 0 {
		r.Delay = time.Duration(r.DelayMS) * time.Millisecond
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.Command] = r
}

// FailWrites makes every following write return err. Pass nil to recover.
func (s *Simulator) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Write records the command and schedules its scripted reply.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.closed {
		return 0, fmt.Errorf("simulator closed")
	}

	cmd := strings.TrimRight(string(p), "\r\n\x00")
	s.written = append(s.written, cmd)

	if r, ok := s.rules[cmd]; ok && len(r.Reply) > 0 {
		reply := r.Reply
		s.timers = append(s.timers, time.AfterFunc(r.Delay, func() { s.Emit(reply...) }))
	}
	return len(p), nil
}

// Emit delivers lines as if the device had sent them.
func (s *Simulator) Emit(lines ...string) {
	for _, l := range lines {
		s.Publish(l)
	}
}

// Written returns every command received so far, without line endings.
func (s *Simulator) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.written))
	copy(out, s.written)
	return out
}

// Name identifies the simulator in logs and run records.
func (s *Simulator) Name() string {
	return "simulator"
}

// Close cancels pending replies.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	return nil
}
