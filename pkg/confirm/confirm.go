package confirm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
)

const (
	// Counts above LARGE_DELETE need a second confirmation
	LARGE_DELETE = 10000

	PROMPT        = "WARNING: Are you **sure** you want to delete all %d items? [y/N] "
	PROMPT_LARGE  = "Are you double-plus sure? There are an awful lot of items here? [y/N] "
	NO_ACTION_MSG = "No action taken."
)

// Gate asks the operator to confirm destructive deletes
type Gate struct {
	in      *bufio.Reader
	out     io.Writer
	noInput bool
}

// NewGate prompts on out and reads answers from in. With noInput every request is granted unasked.
func NewGate(in io.Reader, out io.Writer, noInput bool) *Gate {
	return &Gate{in: bufio.NewReader(in), out: out, noInput: noInput}
}

// Proceed reports whether deleting count items was confirmed. A refusal prints NO_ACTION_MSG.
func (g *Gate) Proceed(count int) bool {
	if g.noInput {
		log.Debugf("deleting %d items without confirmation", count)
		return true
	}
	if !g.ask(fmt.Sprintf(PROMPT, count)) {
		return g.decline()
	}
	if count > LARGE_DELETE && !g.ask(PROMPT_LARGE) {
		return g.decline()
	}
	return true
}

func (g *Gate) ask(prompt string) bool {
	fmt.Fprint(g.out, prompt)
	answer, err := g.in.ReadString('\n')
	if err != nil && answer == "" {
		// closed input counts as no
		return false
	}
	answer = strings.TrimSpace(answer)
	return strings.HasPrefix(answer, "y") || strings.HasPrefix(answer, "Y")
}

func (g *Gate) decline() bool {
	fmt.Fprintln(g.out, NO_ACTION_MSG)
	return false
}
