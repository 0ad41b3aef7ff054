// Package provider implements the upstream data provider interface.
//
// Two implementations exist behind domain.Provider: a simulated provider that
// seeds realistic portfolio data and walks prices in the background, and a
// broker REST client. Which one runs is a construction-time choice in main,
// never hidden global state.
package provider
