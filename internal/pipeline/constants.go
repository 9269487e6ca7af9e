package pipeline

const (
	// DefaultBlockSize is the number of samples Run reads per iteration.
	DefaultBlockSize = 16384

	// maxBufferGrowth bounds how far Run grows its input buffer, in
	// multiples of the block size, while waiting for a block that needs
	// more data before it can consume anything.
	maxBufferGrowth = 64

	bufferGrowthFactor = 2

	// drainPasses bounds how often a chain re-offers pending samples to
	// its second stage within one call.
	drainPasses = 64
)
