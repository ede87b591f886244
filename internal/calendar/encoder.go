// Package calendar encodes calendar positions of future dates into fixed-size
// numeric feature vectors for the forecasting pipeline. Encoding is a pure
// function of the date: it never looks at historical values, so the same date
// always yields the same vector.
package calendar

import "time"

// Feature vector layout: one-hot day-of-week, one-hot month, weekend flag,
// day-of-month. The layout is part of the model contract; changing it
// invalidates any predictor trained against it.
const (
	DayOfWeekDim = 7
	MonthDim     = 12

	// FeatureDim is the total dimensionality of one encoded date.
	FeatureDim = DayOfWeekDim + MonthDim + 2
)

// Encode returns one feature vector per future day, starting at start and
// covering horizonDays consecutive days. Any valid calendar date is
// encodable; horizonDays <= 0 yields an empty slice.
func Encode(start time.Time, horizonDays int) [][]float64 {
	if horizonDays <= 0 {
		return [][]float64{}
	}

	features := make([][]float64, horizonDays)
	for i := 0; i < horizonDays; i++ {
		features[i] = EncodeDate(start.AddDate(0, 0, i))
	}

	return features
}

// EncodeDate encodes a single date into a FeatureDim-sized vector.
func EncodeDate(date time.Time) []float64 {
	v := make([]float64, FeatureDim)

	// One-hot day of week, Sunday = 0
	dow := int(date.Weekday())
	v[dow] = 1

	// One-hot month, January = 0
	month := int(date.Month()) - 1
	v[DayOfWeekDim+month] = 1

	// Weekend flag
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		v[DayOfWeekDim+MonthDim] = 1
	}

	// Day of month, 1-31
	v[DayOfWeekDim+MonthDim+1] = float64(date.Day())

	return v
}
