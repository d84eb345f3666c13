// Package analysis turns simulation output into beam-physics diagnostics.
//
//   - [Tune]: betatron tune from a particle's radial offset history
//   - [PowerSpectrum]: windowed magnitude spectrum of a sampled signal
//   - [PhaseSpace]: transverse phase-space points of a beam
//   - [PhasePortraitToASCII]: terminal scatter plot of a portrait
//
// A tune is measured from the track recorded by the simulator:
//
//	res, _ := simulator.Run(ctx, cfg)
//	q, err := analysis.Tune(res.Track, cfg.Dt, revolution)
package analysis
