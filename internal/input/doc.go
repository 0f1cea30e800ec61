// Package input abstracts operator input devices.
//
// A [Source] is polled once per control tick. Polling never blocks; it
// drains whatever events arrived since the previous call and folds them into
// the source's [State] snapshot, which the caller then reads through
// [Source.Axis] and [Source.Button].
//
// Backends live in subpackages (joydev, sdlpad). [Script] replays a timed
// event list and is used for simulation and tests.
package input
