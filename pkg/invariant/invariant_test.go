package invariant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func panicMessage(fn func()) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg, _ = r.(string)
		}
	}()
	fn()
	return ""
}

func TestAssertions(t *testing.T) {
	assert.NotPanics(t, func() { Precondition(true, "fine") })
	assert.NotPanics(t, func() { Invariant(true, "fine") })
	assert.NotPanics(t, func() { NotNil(&struct{}{}, "x") })

	msg := panicMessage(func() { Invariant(false, "counter %d", 3) })
	assert.True(t, strings.HasPrefix(msg, "INVARIANT VIOLATION: counter 3"), msg)
	assert.Contains(t, msg, "invariant_test.go")

	var p *int
	msg = panicMessage(func() { NotNil(p, "p") })
	assert.Contains(t, msg, "p must not be nil")

	msg = panicMessage(func() { Unreachable("kind %s", "x") })
	assert.Contains(t, msg, "UNREACHABLE VIOLATION: kind x")
}
