package kernel

// Config holds the five constants fixed at kernel construction time: the
// per-side trading fees (in units of 1/10,000, i.e. basis points times
// ten) and the three simulated-latency knobs. FeeBase is always 10,000
// and is not configurable — it defines the units the fees are expressed
// in, per spec.md §6.
type Config struct {
	LimitOrderFee   uint64
	MarketOrderFee  uint64
	PostLatencyMS   uint64
	CancelLatencyMS uint64
	CallFrequencyMS uint64
}

// FeeBase is the fixed-point base fees are expressed against.
const FeeBase = 10000

// DefaultConfig returns the latency/frequency defaults named in spec.md §6
// (100ms each) with zero fees.
func DefaultConfig() Config {
	return Config{
		PostLatencyMS:   100,
		CancelLatencyMS: 100,
		CallFrequencyMS: 100,
	}
}
