// Package loop drives the rig: it polls the operator's input device at a
// fixed cadence, maps stick positions to wheel speeds and writes changed
// speeds to the motor controller.
//
// Each [Loop.Tick] runs, in order:
//
//  1. drain input events
//  2. feed or check the no-input watchdog
//  3. handle quit, device removal and the freewheel toggle
//  4. compute and dispatch drive commands unless stopped or freewheeling
//
// [Loop.Run] repeats Tick until the operator quits or the context is
// cancelled, reacquiring the input device whenever it disappears. Every
// exit path commands a full stop before Run returns.
//
// # Thread Safety
//
// A Loop is single-threaded. Observers are called synchronously from the
// loop goroutine and must not block.
package loop
