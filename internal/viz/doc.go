// Package viz draws accelerator runs in the terminal.
//
//   - [Monitor]: Bubble Tea program that steps an accelerator and shows the
//     ring, live diagnostics and their history
//   - [RingView]: braille top view of the ring and its particles
//   - [Printer]: sim.Observer printing one status line per sample
//
// # Key Bindings
//
//	Space - Pause/Resume
//	+/-   - Steps per frame
//	R     - Rebuild the accelerator
//	Q     - Quit
package viz
