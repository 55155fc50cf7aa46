package memory

import "regexp"

// signalPattern matches lines of the form: RALPH2_MEMORY: TYPE content,
// emitted by planner/executor/verifier/specialist agents into their raw
// output alongside the structured JSON payload C8 validates. These
// signals feed ORIENT's prior-iteration digest; they are distinct from
// the literal memory.md file owned by internal/project, which the
// planner curates directly.
var signalPattern = regexp.MustCompile(`(?m)^RALPH2_MEMORY:\s+(\w+)\s+(.+)$`)

// validTypes is the set of recognised signal types.
var validTypes = map[SignalType]bool{
	KeyFact:      true,
	Decision:     true,
	StepDone:     true,
	StepPending:  true,
	FileModified: true,
	Error:        true,
}

// ParseSignals extracts all memory signals from combined agent output.
func ParseSignals(output string) []Signal {
	matches := signalPattern.FindAllStringSubmatch(output, -1)
	signals := make([]Signal, 0, len(matches))
	for _, m := range matches {
		st := SignalType(m[1])
		if !validTypes[st] {
			continue
		}
		signals = append(signals, Signal{
			Type:    st,
			Content: m[2],
		})
	}
	return signals
}
