package services

import (
	"fmt"
	"strings"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
)

const tutorPersona = "You are an AI tutor for OCR A-Level Computer Science students. " +
	"You explain concepts clearly and accurately, using examples relevant to the OCR specification. " +
	"You are patient, encouraging, and adapt your explanations to the student's level of understanding."

// One instruction paragraph per tutoring mode. Unknown modes fall back to
// explore.
var modeInstructions = map[string]string{
	types.ModeExplore: "The student is exploring this topic for the first time. " +
		"Introduce concepts gradually, check understanding as you go, and connect new ideas to things the student is likely to already know.",
	types.ModePractice: "The student wants to practise this topic. " +
		"Pose questions of increasing difficulty, wait for the student's attempt before revealing answers, and give specific feedback on each attempt.",
	types.ModeCode: "The student wants to work on programming tasks for this topic. " +
		"Set practical coding exercises, review the student's code for correctness and style, and explain any improvements you suggest.",
	types.ModeReview: "The student is revising this topic. " +
		"Summarise the key points concisely, highlight common misconceptions and exam pitfalls, and quiz the student briefly to confirm retention.",
	types.ModeTest: "The student wants exam-style assessment on this topic. " +
		"Ask OCR exam-style questions one at a time, mark each answer against what an examiner would credit, and state the marks awarded.",
}

// PromptBuilder assembles the system prompt and message list sent to the
// model. It is pure: persistence and transport concerns stay with callers.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// System renders the tutor persona plus the mode instructions for a topic.
func (b *PromptBuilder) System(mode, topicTitle string) string {
	instr, ok := modeInstructions[mode]
	if !ok {
		instr = modeInstructions[types.ModeExplore]
	}
	var sb strings.Builder
	sb.WriteString(tutorPersona)
	sb.WriteString("\n\n")
	if topicTitle != "" {
		sb.WriteString(fmt.Sprintf("The current topic is: %s.\n\n", topicTitle))
	}
	sb.WriteString(instr)
	return sb.String()
}

// Augment wraps the student's question with reference material. The
// augmented form goes to the model only; the stored transcript keeps the
// raw question.
func (b *PromptBuilder) Augment(question, knowledgeContext string) string {
	if strings.TrimSpace(knowledgeContext) == "" {
		return question
	}
	return "Reference material:\n" + knowledgeContext +
		"\n\nUsing the reference material where appropriate, answer the student's question:\n" + question
}

// Assemble produces the full model request for one turn: prior transcript
// oldest first, then the (augmented) question as the final user message.
// System-role transcript rows are folded into the system prompt rather
// than replayed as messages.
func (b *PromptBuilder) Assemble(
	question string,
	mode string,
	topicTitle string,
	knowledgeContext string,
	history []*types.TutorMessage,
) (string, []anthropic.Message) {
	system := b.System(mode, topicTitle)

	msgs := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case types.MessageRoleUser, types.MessageRoleAssistant:
			msgs = append(msgs, anthropic.Message{Role: m.Role, Content: m.Content})
		case types.MessageRoleSystem:
			system = system + "\n\n" + m.Content
		}
	}
	msgs = append(msgs, anthropic.Message{
		Role:    types.MessageRoleUser,
		Content: b.Augment(question, knowledgeContext),
	})
	return system, msgs
}

// WelcomeMessage is the assistant greeting stored when a session opens.
func WelcomeMessage(topicTitle, mode string) string {
	m := mode
	if _, ok := modeInstructions[m]; !ok {
		m = types.ModeExplore
	}
	label := strings.ToUpper(m[:1]) + m[1:]
	return fmt.Sprintf("Welcome to the %s %s session. How can I help you today?", topicTitle, label)
}
