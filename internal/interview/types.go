// Package interview holds the mock-interview domain: the conversation
// history, the built-in interviewer personas, and the turn controller that
// sequences one spoken exchange from finalized audio clip to synthesized
// reply.
package interview

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Type is one interviewer persona. Name is the stable identifier used in
// configuration and API requests; Prompt is the system instruction installed
// at the head of every conversation of this type.
type Type struct {
	Name   string
	Prompt string
}

// SystemPrompt returns the system message content for this type, augmented
// with the job description when one is given.
func (t Type) SystemPrompt(jobDescription string) string {
	jd := strings.TrimSpace(jobDescription)
	if jd == "" {
		return t.Prompt
	}
	return t.Prompt + "\n\nThe position the candidate is interviewing for is described as follows:\n" + jd
}

// Built-in interviewer personas.
var builtinTypes = []Type{
	{
		Name:   "software-engineer",
		Prompt: `You are an experienced technical interviewer for a software engineering position. Your task is to conduct a technical interview that assesses the candidate's programming knowledge, problem-solving abilities, and system design skills. Ask challenging but fair questions, follow up on the candidate's responses, and provide a realistic interview experience. Be conversational and encouraging, but also thorough in your evaluation.`,
	},
	{
		Name:   "technical-product-support",
		Prompt: `You are an experienced technical interviewer for a technical product support position. Your task is to conduct a technical interview that assesses the candidate's troubleshooting skills, customer service abilities, and technical knowledge. Ask questions about handling difficult customer situations, diagnosing technical problems, and explaining complex concepts in simple terms. Be conversational and encouraging, but also thorough in your evaluation.`,
	},
}

// DefaultType is the interview type used when a client does not choose one.
const DefaultType = "software-engineer"

// feedbackInstruction is appended as the final system message of a feedback
// request. The copy kept in the history is not modified.
const feedbackInstruction = `The interview is over. Review the conversation above and provide detailed feedback on the candidate's performance: summarize their strengths, name concrete areas for improvement, and give an overall assessment of how they did. Address the candidate directly.`

// Types is a registry of interview types. The zero value is not usable; use
// NewTypes, which seeds the built-in personas.
type Types struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewTypes returns a registry seeded with the built-in interview types.
func NewTypes() *Types {
	r := &Types{types: make(map[string]Type, len(builtinTypes))}
	for _, t := range builtinTypes {
		r.types[t.Name] = t
	}
	return r
}

// Register adds or replaces a type. Name and prompt must be non-empty.
func (r *Types) Register(t Type) error {
	if t.Name == "" {
		return fmt.Errorf("interview: type name must not be empty")
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return fmt.Errorf("interview: type %q has an empty prompt", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
	return nil
}

// Get looks up a type by name.
func (r *Types) Get(name string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return Type{}, fmt.Errorf("interview: unknown interview type %q", name)
	}
	return t, nil
}

// Names returns the registered type names in sorted order.
func (r *Types) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
