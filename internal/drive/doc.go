// Package drive maps operator stick input to differential-drive wheel speeds.
//
// The mapping is a pure function of the current stick position and the
// modifier buttons:
//
//   - [Mapper]: throttle/steer/turbo/slow to a [Command]
//   - [Command]: left and right speeds in [-1, 1]
//   - [Quantize]: fractional speed to the actuator's integer range
//
// # Usage
//
//	m := drive.DefaultMapper()
//	cmd := m.Compute(throttle, steer, turboHeld, slowHeld).Scale(maxPower)
//	left := drive.Quantize(cmd.Left, actuator.Range)
package drive
