package modelagent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dusk-indust/conductor/internal/backend"
)

// NewEchoAgent creates a stub that returns the user prompt, prefixed so the
// output is recognizably synthetic in transcripts.
func NewEchoAgent() *BaseAgent {
	return NewBaseAgent("echo", func(_ context.Context, req backend.Request) (string, error) {
		return "echo: " + req.UserPrompt, nil
	})
}

// NewLoremAgent creates a stub that replies with a fixed paragraph per
// call, numbered so repeated calls are distinguishable. Useful for
// exercising output versioning.
func NewLoremAgent() *BaseAgent {
	var mu sync.Mutex
	n := 0
	return NewBaseAgent("lorem", func(_ context.Context, req backend.Request) (string, error) {
		mu.Lock()
		n++
		seq := n
		mu.Unlock()

		topic := req.UserPrompt
		if len(topic) > 40 {
			topic = topic[:40]
		}
		return fmt.Sprintf("Draft %d on %q. Lorem ipsum dolor sit amet, consectetur adipiscing elit.", seq, topic), nil
	})
}

// ScriptedAgent answers by exact prompt lookup, with injectable failures.
// Prompts without a script entry fall through to an echo reply.
type ScriptedAgent struct {
	*BaseAgent

	mu       sync.Mutex
	replies  map[string]string
	failures map[string]*backend.CallError
}

// NewScriptedAgent creates a scripted stub.
func NewScriptedAgent(name string) *ScriptedAgent {
	s := &ScriptedAgent{
		replies:  make(map[string]string),
		failures: make(map[string]*backend.CallError),
	}
	s.BaseAgent = NewBaseAgent(name, s.answer)
	return s
}

// Reply registers the content returned for an exact user prompt.
func (s *ScriptedAgent) Reply(prompt, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[prompt] = content
}

// Fail registers a typed failure for an exact user prompt.
func (s *ScriptedAgent) Fail(prompt string, class backend.ErrorClass, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prompt] = backend.NewCallError(class, message, nil)
}

func (s *ScriptedAgent) answer(_ context.Context, req backend.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failures[req.UserPrompt]; ok {
		return "", err
	}
	if content, ok := s.replies[req.UserPrompt]; ok {
		return content, nil
	}
	return "echo: " + req.UserPrompt, nil
}

// NewReverseAgent creates a stub that reverses the user prompt word by
// word. Deterministic and visibly different from its input, which makes it
// handy for asserting that outputs actually flowed through a phase.
func NewReverseAgent() *BaseAgent {
	return NewBaseAgent("reverse", func(_ context.Context, req backend.Request) (string, error) {
		words := strings.Fields(req.UserPrompt)
		for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
			words[i], words[j] = words[j], words[i]
		}
		return strings.Join(words, " "), nil
	})
}
