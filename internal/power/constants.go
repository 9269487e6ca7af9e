package power

// Defaults match the antenna meter: 4096-bin frames referenced to full-scale
// unsigned 8-bit samples.
const (
	DefaultBlockSize = 4096
	DefaultBinStart  = 2000
	DefaultBinCount  = 46
	DefaultWindow    = 1000
	DefaultThreshold = -40.0
	DefaultReference = 127.0
)

const dbMultiplier = 20.0
