package forecast

import (
	"context"
	"fmt"

	"forecastcli/internal/dataset"
)

// preparedWindow is the normalized model input built from caller history.
type preparedWindow struct {
	// matrix is [lookback][len(honored)], most recent row last.
	matrix [][]float64
	// honored lists the series that made it into the matrix, in column order.
	honored []string
	// dropped lists requested series absent from the history.
	dropped []string
	// paddedRows is the number of zero rows prepended to reach the lookback.
	paddedRows int
}

// prepareWindow selects the requested series from history, trims to the
// most recent lookback rows, left-pads short history with zero rows and
// applies the fitted scaling transform when one is attached. Missing series
// are dropped with a warning, not a failure; callers learn what was honored
// from the result quality metadata.
func (f *Forecaster) prepareWindow(ctx context.Context, history *dataset.Dataset, names []string) (*preparedWindow, error) {
	if len(names) == 0 {
		names = history.SeriesNames()
	}

	honored := make([]string, 0, len(names))
	var dropped []string
	for _, name := range names {
		if _, ok := history.Column(name); ok {
			honored = append(honored, name)
		} else {
			dropped = append(dropped, name)
			f.logger.WarnContext(ctx, "requested series not found in history, skipping",
				"series", name,
			)
		}
	}

	if len(honored) == 0 {
		return nil, fmt.Errorf("none of the requested series present in history: %v", names)
	}

	window := history.Tail(f.lookback)
	rows := window.Len()

	paddedRows := 0
	if rows < f.lookback {
		paddedRows = f.lookback - rows
		f.logger.WarnContext(ctx, "insufficient history, left-padding with zero rows",
			"rows", rows,
			"lookback", f.lookback,
			"padded_rows", paddedRows,
		)
	}

	matrix := make([][]float64, f.lookback)
	for i := range matrix {
		matrix[i] = make([]float64, len(honored))
	}

	for j, name := range honored {
		values, _ := window.Column(name)
		scaled := f.scaleColumn(name, values)
		for i, v := range scaled {
			matrix[paddedRows+i][j] = v
		}
	}

	return &preparedWindow{
		matrix:     matrix,
		honored:    honored,
		dropped:    dropped,
		paddedRows: paddedRows,
	}, nil
}

// scaleColumn applies the fitted transform when present; otherwise each
// series is normalized by its own window maximum. A zero-valued series
// passes through unscaled to avoid dividing by zero.
func (f *Forecaster) scaleColumn(name string, values []float64) []float64 {
	if f.scaler != nil && f.scaler.Fitted {
		return f.scaler.TransformColumn(name, values)
	}

	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / max
	}
	return out
}
