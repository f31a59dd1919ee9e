package confirm_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"freelaw.courtlistener.cl-update-index/pkg/confirm"
	"github.com/stretchr/testify/assert"
)

func gate(answers string, noInput bool) (*confirm.Gate, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return confirm.NewGate(strings.NewReader(answers), out, noInput), out
}

func TestSinglePromptAtThreshold(t *testing.T) {
	g, out := gate("y\n", false)
	assert.True(t, g.Proceed(10000))
	assert.Equal(t, fmt.Sprintf(confirm.PROMPT, 10000), out.String())
}

func TestSecondPromptAboveThreshold(t *testing.T) {
	g, out := gate("y\nYes\n", false)
	assert.True(t, g.Proceed(10001))
	assert.Equal(t, fmt.Sprintf(confirm.PROMPT, 10001)+confirm.PROMPT_LARGE, out.String())
}

func TestDeclineFirst(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", "maybe\n", ""} {
		g, out := gate(answer, false)
		assert.False(t, g.Proceed(5), answer)
		assert.True(t, strings.HasSuffix(out.String(), confirm.NO_ACTION_MSG+"\n"))
	}
}

func TestDeclineSecond(t *testing.T) {
	g, out := gate("y\nno\n", false)
	assert.False(t, g.Proceed(20000))
	assert.Equal(t, fmt.Sprintf(confirm.PROMPT, 20000)+confirm.PROMPT_LARGE+confirm.NO_ACTION_MSG+"\n", out.String())
}

func TestAnswerWithoutNewline(t *testing.T) {
	g, _ := gate("Y", false)
	assert.True(t, g.Proceed(1))
}

func TestNoInputSkipsPrompts(t *testing.T) {
	g, out := gate("", true)
	assert.True(t, g.Proceed(1000000))
	assert.Empty(t, out.String())
}
