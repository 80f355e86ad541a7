package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "Начать"})
	reg.RegisterCommand("/cancel", Command{Handler: noop, Description: "Отмена", Aliases: []string{"stop"}})
	reg.RegisterCommand("/stats", Command{Handler: noop, Description: "Stats", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "dup"})
	reg.RegisterCommand("help", Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/nil", Command{Description: "no handler"})

	assert.Len(t, reg.Commands(), 3)
	assert.Equal(t, "Начать", reg.Commands()["/start"].Description)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "cancel", visible[0].Text)
	assert.Equal(t, "start", visible[1].Text)
	assert.Len(t, reg.ListCommands(false), 3)

	key, _, ok := reg.LookupCommand("start@StyleBot")
	assert.True(t, ok)
	assert.Equal(t, "/start", key)
	key, _, ok = reg.LookupCommand("/stop")
	assert.True(t, ok)
	assert.Equal(t, "/cancel", key)
	_, _, ok = reg.LookupCommand("/unknown")
	assert.False(t, ok)
}
