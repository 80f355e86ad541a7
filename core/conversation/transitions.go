package conversation

import (
	"context"

	"github.com/m3rciful/stylebot/core/session"
)

// transitions lists the forward moves allowed from each state. Returning to
// Idle through a reset is always allowed and is not listed.
var transitions = map[session.State][]session.State{
	session.StateIdle:                 {session.StateAwaitingTechnology, session.StateAwaitingContentImage},
	session.StateAwaitingTechnology:   {session.StateAwaitingContentImage},
	session.StateAwaitingContentImage: {session.StateAwaitingStyle},
	session.StateAwaitingStyle:        {},
}

type stepFunc func(e *Engine, ctx context.Context, sess *session.Session, ev Event) Response

// steps routes non-command input by state and kind. Missing entries are
// answered as unexpected input.
var steps = map[session.State]map[Kind]stepFunc{
	session.StateIdle: {
		KindText:  (*Engine).idleHint,
		KindPhoto: (*Engine).idleHint,
	},
	session.StateAwaitingTechnology: {
		KindText: (*Engine).chooseTechnology,
	},
	session.StateAwaitingContentImage: {
		KindPhoto: (*Engine).receivePhoto,
	},
	session.StateAwaitingStyle: {
		KindText: (*Engine).chooseStyle,
	},
}

func canAdvance(from, to session.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
