// Package refvalidator confirms, over the bus, that a referenced Servicio
// exists before a dependent entity is created. Anything short of a positive
// answer fails closed.
package refvalidator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
)

var (
	// ErrNotFound means the owning service answered that the id does not exist.
	ErrNotFound = errors.New("referenced entity does not exist")
	// ErrUnconfirmed means no answer arrived in time or the call failed.
	ErrUnconfirmed = errors.New("referenced entity could not be confirmed")
)

// NotFoundError names the missing id.
type NotFoundError struct {
	ServicioID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("servicio %d does not exist", e.ServicioID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Caller performs a request/response exchange over the bus.
type Caller interface {
	Call(ctx context.Context, pattern string, req, resp any) error
}

// Observer receives the duration and outcome of every validation.
type Observer func(outcome string, elapsed time.Duration)

type Validator struct {
	caller   Caller
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

func New(caller Caller, timeout time.Duration, logger *zap.Logger, observer Observer) *Validator {
	if observer == nil {
		observer = func(string, time.Duration) {}
	}
	return &Validator{caller: caller, timeout: timeout, logger: logger, observer: observer}
}

// ValidateServicio returns nil only when the servicio producer confirms id exists.
func (v *Validator) ValidateServicio(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	var resp models.ValidarServicioResponse
	err := v.caller.Call(ctx, models.PatternValidarServicio, models.ValidarServicioRequest{ServicioID: id}, &resp)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		v.observer("unconfirmed", elapsed)
		v.logger.Warn("Servicio validation failed, rejecting",
			zap.Int64("servicio_id", id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("%w: servicio %d: %v", ErrUnconfirmed, id, err)
	case resp.ServicioID != id:
		v.observer("unconfirmed", elapsed)
		v.logger.Warn("Servicio validation answered for another id, rejecting",
			zap.Int64("servicio_id", id),
			zap.Int64("answered_id", resp.ServicioID),
		)
		return fmt.Errorf("%w: servicio %d: answer was for %d", ErrUnconfirmed, id, resp.ServicioID)
	case !resp.Existe:
		v.observer("not_found", elapsed)
		return &NotFoundError{ServicioID: id}
	}

	v.observer("exists", elapsed)
	return nil
}
