// Package forecast implements the demand and financial time-series
// forecasting pipeline: it windows irregular historical observations into a
// fixed-length model input, enriches it with calendar context, drives an
// opaque sequence predictor and packages the raw output into calibrated,
// unit-aware multi-day forecasts with confidence bands.
//
// # Pipeline
//
// Within one Predict call the stages run strictly in order, each feeding
// the next:
//
//	history ── windower ──► [L×N] scaled matrix ─┐
//	                                             ├─► predictor ──► [h×N]
//	start date ── calendar encoder ──► [h×C] ────┘        │
//	                                                      ▼
//	                        inverse scale, clamp ≥ 0, attach units
//	                                                      │
//	                                                      ▼
//	                 { "YYYY-MM-DD": { series: {mean, lower, upper, …} } }
//
// # Degradation
//
// Short history is zero-padded and missing series are dropped; both are
// warnings, not errors, logged and recorded in the result's Quality block.
// Callers receive either a complete result or an error, never a partial
// result.
//
// # Concurrency
//
// Forecast calls are synchronous and share the predictor read-only through
// a ModelHandle. The Trainer is the handle's only writer and publishes
// fully built replacement models with an atomic pointer swap.
package forecast
