package fanout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Run_Returns_Nil_Error_When_All_Tasks_Succeed(t *testing.T) {
	tasks := []func() (int, error){
		func() (int, error) { return 1, nil },
		func() (int, error) { return 2, nil },
		func() (int, error) { return 3, nil },
	}

	results, err := Run(tasks)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, results)
}

func Test_Run_Returns_Unwrapped_Error_When_Exactly_One_Task_Fails(t *testing.T) {
	boom := errors.New("boom")

	tasks := []func() (int, error){
		func() (int, error) { return 1, nil },
		func() (int, error) { return 0, boom },
		func() (int, error) { return 3, nil },
	}

	_, err := Run(tasks)
	require.ErrorIs(t, err, boom)
	assert.Same(t, boom, err, "a lone failure must be returned unwrapped")
}

func Test_Run_Aggregates_Errors_When_Two_Or_More_Tasks_Fail(t *testing.T) {
	err1 := errors.New("err1")
	err2 := errors.New("err2")

	tasks := []func() (int, error){
		func() (int, error) { return 0, err1 },
		func() (int, error) { return 0, err2 },
		func() (int, error) { return 3, nil },
	}

	_, err := Run(tasks)
	require.ErrorIs(t, err, err1)
	require.ErrorIs(t, err, err2)
	assert.ErrorIs(t, err, ErrAggregate, "2+ failures must be classifiable via errors.Is(err, ErrAggregate)")
}

func Test_Settle_Returns_Nil_When_No_Errors(t *testing.T) {
	assert.NoError(t, Settle([]error{nil, nil, nil}))
}

func Test_Settle_Returns_Unwrapped_Error_For_Single_Failure(t *testing.T) {
	boom := errors.New("boom")

	err := Settle([]error{nil, boom, nil})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAggregate, "a lone failure must not be classified as an aggregate")
}
