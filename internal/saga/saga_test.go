package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var order []string
	s := NewSaga("ok", zap.NewNop())
	for _, name := range []string{"a", "b"} {
		name := name
		s.AddStep(SagaStep{
			Name:       name,
			Execute:    func(context.Context) error { order = append(order, name); return nil },
			Compensate: func(context.Context) error { order = append(order, "undo-"+name); return nil },
		})
	}

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	var order []string
	s := NewSaga("fails", zap.NewNop())
	s.AddStep(SagaStep{
		Name:       "first",
		Execute:    func(context.Context) error { return nil },
		Compensate: func(context.Context) error { order = append(order, "undo-first"); return nil },
	})
	s.AddStep(SagaStep{
		Name:       "second",
		Execute:    func(context.Context) error { return nil },
		Compensate: func(context.Context) error { order = append(order, "undo-second"); return errors.New("ignored") },
	})
	s.AddStep(SagaStep{
		Name:       "third",
		Execute:    func(context.Context) error { return domain.NewGatewayError("capture", true, errors.New("card declined")) },
		Compensate: func(context.Context) error { order = append(order, "undo-third"); return nil },
	})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed at step 'third'")
	assert.Equal(t, []string{"undo-second", "undo-first"}, order)

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
}

func TestSaga_CompensationSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensateErr error
	s := NewSaga("cancelled", zap.NewNop())
	s.AddStep(SagaStep{
		Name:       "hold",
		Execute:    func(context.Context) error { return nil },
		Compensate: func(c context.Context) error { compensateErr = c.Err(); return nil },
	})
	s.AddStep(SagaStep{
		Name:    "persist",
		Execute: func(context.Context) error { cancel(); return context.Canceled },
	})

	require.Error(t, s.Execute(ctx))
	assert.NoError(t, compensateErr)
}
