// Package sdrdsp is a streaming DSP core for software defined radio
// receivers, in pure Go.
//
// It provides the building blocks a receiver needs between the sample
// source and the application:
//
//   - a numerically controlled oscillator that moves a signal to DC
//   - Kaiser window low-pass design
//   - an exact rational polyphase resampler for real and complex streams
//   - a quadrature FM demodulator
//   - an FFT power spectrum and a mean/peak power aggregator
//
// Every stage follows one block contract: Process borrows a slice of
// input, reports how much of it was consumed and returns the output it
// produced; Drain flushes buffered output at end of stream. Blocks compose
// with Chain and are driven by Run, which drains the chain when the source
// ends or the context is cancelled.
//
// # FM receiver
//
//	cfg := sdrdsp.DefaultConfig()
//	cfg.FM.Frequency = 100.3e6
//	rx, err := sdrdsp.NewFMReceiver(cfg, sdrdsp.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := rx.Run(ctx, source, sink)
//
// The receiver picks an audio rate that divides well into the sample rate,
// runs the demodulator at a small multiple of it and decimates to audio.
// TuneTo retunes while the receiver runs.
//
// # Power meter
//
//	meter, err := sdrdsp.NewPowerMeter(cfg)
//	_, err = meter.Run(ctx, source, func(r sdrdsp.Reading) {
//	    fmt.Printf("%.1f dB\n", r.Value)
//	})
//
// The mean policy averages a band of bins over a window of frames; the
// peak policy reports the strongest bin of every frame, optionally gated
// by a threshold.
package sdrdsp
