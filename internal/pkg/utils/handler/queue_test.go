package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/airenas/supaquery/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/vgarvardt/gue/v5"
)

type testMsg struct {
	ID string `json:"id"`
}

type testData struct {
	got   []string
	err   error
	panic bool
}

func handle(ctx context.Context, m *testMsg, d *testData) error {
	if d.panic {
		panic("olia")
	}
	d.got = append(d.got, m.ID)
	return d.err
}

func TestCreate(t *testing.T) {
	d := &testData{}
	f := Create(d, handle, DefaultOpts[testMsg]())

	err := f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":"1"}`)})

	assert.Nil(t, err)
	assert.Equal(t, []string{"1"}, d.got)
}

func TestCreate_Retry(t *testing.T) {
	d := &testData{err: fmt.Errorf("olia")}
	f := Create(d, handle, DefaultOpts[testMsg]().WithBackoff(NoBackoff()))

	err := f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":"1"}`)})

	assert.NotNil(t, err)
}

func TestCreate_GiveUp(t *testing.T) {
	d := &testData{err: fmt.Errorf("olia")}
	f := Create(d, handle, DefaultOpts[testMsg]())

	err := f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":"1"}`), ErrorCount: maxRetries})

	assert.Nil(t, err)
}

func TestCreate_Panic(t *testing.T) {
	d := &testData{panic: true}
	var got error
	f := Create(d, handle, DefaultOpts[testMsg]().WithFailure(
		func(ctx context.Context, m *testMsg, err error, j *gue.Job) (bool, time.Duration, error) {
			got = err
			return false, 0, nil
		}))

	err := f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":"1"}`)})

	assert.Nil(t, err)
	assert.ErrorContains(t, got, "panic: olia")
}

func TestCreate_BadMessage(t *testing.T) {
	d := &testData{}
	var got *testMsg
	f := Create(d, handle, DefaultOpts[testMsg]().WithFailure(
		func(ctx context.Context, m *testMsg, err error, j *gue.Job) (bool, time.Duration, error) {
			got = m
			return false, 0, nil
		}))

	err := f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":`)})

	assert.Nil(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, d.got)
}

func TestCreate_FailureHandlerFails(t *testing.T) {
	d := &testData{err: fmt.Errorf("olia")}
	f := Create(d, handle, DefaultOpts[testMsg]().WithBackoff(NoBackoff()).WithFailure(
		func(ctx context.Context, m *testMsg, err error, j *gue.Job) (bool, time.Duration, error) {
			return true, 0, fmt.Errorf("db down")
		}))

	assert.NotNil(t, f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":"1"}`), ErrorCount: 1}))
	assert.Nil(t, f(test.Ctx(t), &gue.Job{Args: []byte(`{"id":"1"}`), ErrorCount: maxHandlerErrors + 1}))
}

func TestCreate_Timeout(t *testing.T) {
	var dl time.Time
	f := Create(&testData{}, func(ctx context.Context, m *testMsg, d *testData) error {
		dl, _ = ctx.Deadline()
		return nil
	}, DefaultOpts[testMsg]().WithTimeout(time.Minute))

	assert.Nil(t, f(context.Background(), &gue.Job{Args: []byte(`{}`)}))
	assert.WithinDuration(t, time.Now().Add(time.Minute), dl, 5*time.Second)
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	assert.GreaterOrEqual(t, b(1), 10*time.Second)
	assert.Less(t, b(1), 11*time.Second)
	assert.GreaterOrEqual(t, b(20), 5*time.Minute)
	assert.Less(t, b(20), 5*time.Minute+time.Second)
}

func TestDefaultBackoffOrTest(t *testing.T) {
	assert.Equal(t, time.Duration(0), DefaultBackoffOrTest(true)(3))
	assert.Greater(t, DefaultBackoffOrTest(false)(3), time.Duration(0))
}
