// Package operations orchestrates the analysis pipeline: fetching and
// parsing the input datasets, constructing firm metrics, aggregating to
// country-year, fitting decomposition and ARMA models, and writing the
// reports. The Manager executes steps sequentially, tracks run state, and
// broadcasts progress events to subscribers.
package operations
