package sampler

import "codeberg.org/mutker/macstatd/internal/errors"

const (
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrBaselineRefresh = errors.ErrorCode("sampler_baseline_refresh_failed")
)
