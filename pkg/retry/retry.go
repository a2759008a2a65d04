package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier retries actions based off of a fixed set of strategies.
type Retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier that will retry actions based off of the
// provided strategies. If no strategies are provided, the retrier acts
// as a tight-loop, retrying until no error is returned from the action.
func NewRetrier(strategies ...Strategy) *Retrier {
	return &Retrier{
		strategies: strategies,
	}
}

// Retry executes the action, retrying on error until one of the retrier's
// strategies indicates no further attempts should be made. It returns the
// number of attempts performed alongside the final error, if any.
func (r *Retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry executes the provided action, potentially multiple times based off of
// the provided strategies. Retry will block until the action is successful, or
// one of the provided strategies indicate no further retries should be performed.
//
// The strategies are executed in the provided order, so any strategies that
// induce delays should be specified last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	for attempts := uint(1); ; attempts++ {
		err := action()
		if err == nil {
			return attempts, nil
		}

		if !shouldRetry(attempts, err, strategies) {
			return attempts, err
		}
	}
}

func shouldRetry(attempts uint, err error, strategies []Strategy) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}

	return true
}
