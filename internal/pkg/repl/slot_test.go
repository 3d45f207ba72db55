package repl

import (
	"context"
	"testing"
	"time"

	"github.com/airenas/supaquery/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_Busy(t *testing.T) {
	s := &Slot{}
	_, task, err := s.Start(test.Ctx(t), "q1")
	require.Nil(t, err)
	assert.Equal(t, "q1", s.Current().Query)

	_, _, err = s.Start(test.Ctx(t), "q2")
	assert.ErrorIs(t, err, ErrBusy)

	task.Finish()
	assert.Nil(t, s.Current())
	_, task, err = s.Start(test.Ctx(t), "q2")
	require.Nil(t, err)
	task.Finish()
}

func TestSlot_Cancel(t *testing.T) {
	s := &Slot{}
	assert.False(t, s.Cancel())
	ctx, task, err := s.Start(test.Ctx(t), "q1")
	require.Nil(t, err)
	assert.True(t, s.Cancel())
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		require.Fail(t, "not canceled")
	}
	// still occupied until finished
	assert.NotNil(t, s.Current())
	task.Finish()
	assert.Nil(t, s.Current())
}

func TestSlot_FinishTwice(t *testing.T) {
	s := &Slot{}
	_, task, err := s.Start(test.Ctx(t), "q1")
	require.Nil(t, err)
	task.Finish()
	_, task2, err := s.Start(test.Ctx(t), "q2")
	require.Nil(t, err)
	task.Finish()
	assert.Equal(t, task2, s.Current())
}

func TestSlot_Wait(t *testing.T) {
	s := &Slot{}
	assert.Nil(t, s.Wait(test.Ctx(t)))
	_, task, err := s.Start(test.Ctx(t), "q1")
	require.Nil(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		task.Finish()
	}()
	assert.Nil(t, s.Wait(test.Ctx(t)))
}

func TestSlot_Wait_Timeout(t *testing.T) {
	s := &Slot{}
	_, task, err := s.Start(test.Ctx(t), "q1")
	require.Nil(t, err)
	defer task.Finish()
	ctx, cf := context.WithTimeout(test.Ctx(t), 10*time.Millisecond)
	defer cf()
	assert.NotNil(t, s.Wait(ctx))
}

func TestHistory(t *testing.T) {
	h := NewHistory(5)
	assert.Empty(t, h.Items())
	for _, q := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		h.Add(q)
	}
	assert.Equal(t, []string{"3", "4", "5", "6", "7"}, h.Items())
	items := h.Items()
	items[0] = "changed"
	assert.Equal(t, "3", h.Items()[0])
}

func TestHistory_MinSize(t *testing.T) {
	h := NewHistory(0)
	h.Add("1")
	h.Add("2")
	assert.Equal(t, []string{"2"}, h.Items())
}
