package refvalidator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
)

type callerFunc func(ctx context.Context, pattern string, req, resp any) error

func (f callerFunc) Call(ctx context.Context, pattern string, req, resp any) error {
	return f(ctx, pattern, req, resp)
}

func answering(existe bool) callerFunc {
	return func(_ context.Context, pattern string, req, resp any) error {
		r := req.(models.ValidarServicioRequest)
		*resp.(*models.ValidarServicioResponse) = models.ValidarServicioResponse{ServicioID: r.ServicioID, Existe: existe}
		return nil
	}
}

func TestValidateServicio_Exists(t *testing.T) {
	var outcomes []string
	v := New(answering(true), time.Second, zap.NewNop(), func(o string, _ time.Duration) {
		outcomes = append(outcomes, o)
	})

	require.NoError(t, v.ValidateServicio(context.Background(), 7))
	assert.Equal(t, []string{"exists"}, outcomes)
}

func TestValidateServicio_NotFoundNamesID(t *testing.T) {
	v := New(answering(false), time.Second, zap.NewNop(), nil)

	err := v.ValidateServicio(context.Background(), 99999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "99999")

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(99999), nf.ServicioID)
}

func TestValidateServicio_TimeoutFailsClosed(t *testing.T) {
	blocking := callerFunc(func(ctx context.Context, _ string, _, _ any) error {
		<-ctx.Done()
		return ctx.Err()
	})
	v := New(blocking, 20*time.Millisecond, zap.NewNop(), nil)

	start := time.Now()
	err := v.ValidateServicio(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnconfirmed)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestValidateServicio_TransportErrorFailsClosed(t *testing.T) {
	v := New(callerFunc(func(context.Context, string, any, any) error {
		return errors.New("channel closed")
	}), time.Second, zap.NewNop(), nil)

	assert.ErrorIs(t, v.ValidateServicio(context.Background(), 1), ErrUnconfirmed)
}

func TestValidateServicio_MismatchedAnswerFailsClosed(t *testing.T) {
	v := New(callerFunc(func(_ context.Context, _ string, _, resp any) error {
		*resp.(*models.ValidarServicioResponse) = models.ValidarServicioResponse{ServicioID: 2, Existe: true}
		return nil
	}), time.Second, zap.NewNop(), nil)

	assert.ErrorIs(t, v.ValidateServicio(context.Background(), 1), ErrUnconfirmed)
}

func TestValidateServicio_SendsPattern(t *testing.T) {
	var got string
	v := New(callerFunc(func(ctx context.Context, pattern string, req, resp any) error {
		got = pattern
		return answering(true)(ctx, pattern, req, resp)
	}), time.Second, zap.NewNop(), nil)

	require.NoError(t, v.ValidateServicio(context.Background(), 3))
	assert.Equal(t, "servicio.validar", got)
}
