package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	labels := []string{"Мозайка", "Ван Гог", "Попова", "Кандинский", "Extra"}
	assert.Equal(t, [][]string{{"Мозайка", "Ван Гог"}, {"Попова", "Кандинский"}, {"Extra"}}, Chunk(labels, 2))
	assert.Len(t, Chunk(labels, 0), 5)
	assert.Empty(t, Chunk(nil, 3))
}

func TestReplyLabels(t *testing.T) {
	m := ReplyLabels([]string{"CycleGAN", "NST"}, DefaultPerRow)
	assert.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 1)
	require.Len(t, m.ReplyKeyboard[0], 2)
	assert.Equal(t, "CycleGAN", m.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "NST", m.ReplyKeyboard[0][1].Text)
}

func TestRemoveKeyboard(t *testing.T) {
	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
