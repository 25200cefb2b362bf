package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged rolling.
// All draws are logged at debug level with the kind, bound, and result.
//
// Roller itself satisfies Source, so it can be injected anywhere a Source is.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Intn draws from the wrapped source and logs the result.
func (r *Roller) Intn(n int) int {
	v := r.src.Intn(n)
	r.logger.Debug("dice roll",
		zap.String("kind", "intn"),
		zap.Int("bound", n),
		zap.Int("result", v),
	)
	return v
}

// Float64 draws from the wrapped source and logs the result.
func (r *Roller) Float64() float64 {
	v := r.src.Float64()
	r.logger.Debug("dice roll",
		zap.String("kind", "float"),
		zap.Float64("result", v),
	)
	return v
}
