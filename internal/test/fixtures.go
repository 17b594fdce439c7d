package test

import "time"

// FixedNow is the reference time used by mock clocks throughout the tests.
var FixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
