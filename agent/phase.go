package agent

// Phase is the logical state of an agent, encoded by which action is armed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGreeting
	PhaseGoodReply
	PhaseEscalation
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGreeting:
		return "greeting"
	case PhaseGoodReply:
		return "good_reply"
	case PhaseEscalation:
		return "escalation"
	default:
		return "unknown"
	}
}
