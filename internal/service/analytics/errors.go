package analytics

import "errors"

// ErrNotFound is returned when no DailyAnalytics doc exists for a
// (campaign, day) pair.
var ErrNotFound = errors.New("analytics: daily analytics not found")
