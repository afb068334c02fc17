// Package pipeline drives submitted board photos through analysis and speech
// synthesis. Each job advances uploaded -> analyzing -> narrating -> done,
// or lands in error; every state change is persisted and then pushed to the
// job's channel.
package pipeline
