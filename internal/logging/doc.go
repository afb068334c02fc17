// Package logging provides the slog construction helpers and standardized
// attribute keys shared by every boardcast component. Components receive a
// *slog.Logger at construction time; nothing in this package holds global
// state.
package logging
