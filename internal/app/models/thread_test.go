package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDirectKey(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, DirectKey(a, b), DirectKey(b, a))
	assert.NotEqual(t, DirectKey(a, b), DirectKey(a, uuid.New()))

	direct := &Thread{Type: ThreadDirect, Participants: []uuid.UUID{b, a}}
	assert.Equal(t, DirectKey(a, b), direct.DirectKey())

	help := &Thread{Type: ThreadHelpMatch, Participants: []uuid.UUID{a, b}}
	assert.Empty(t, help.DirectKey())
	assert.Empty(t, (&Thread{Type: ThreadDirect, Participants: []uuid.UUID{a}}).DirectKey())
}
