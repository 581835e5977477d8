package pipeline

import (
	"fmt"
)

// welcomeInstruction is the synthetic turn used to generate a topic's
// first message during initialization.
const welcomeInstruction = "Introduce yourself to the participants of this conversation in one or two short paragraphs."

// analysisInstruction asks the model to append extracted signals to
// its answer. The provider strips the block before the text is shown.
const analysisInstruction = `After your answer, append a machine-readable block of the form
<analysis>{"keywords": ["..."], "description": "...", "summary": "..."}</analysis>
Rules: always include 2-6 lowercase keywords describing this exchange.
Include "description" only when the conversation has shifted to a new
subject, phrased as a short name for that subject. When you include a
description, also include "summary": two or three sentences condensing
what was discussed under the previous subject. Omit both otherwise.`

// systemPrompt builds the persona instruction for a responder.
func systemPrompt(responderName string) string {
	return fmt.Sprintf(`You are %s, a participant in a multi-party text conversation.
Reply naturally in that persona. Keep answers conversational.

%s`, responderName, analysisInstruction)
}
