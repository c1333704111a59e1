// Package ratelimit provides the politeness delay applied between
// successive fetches of the link-chain walker.
//
// The walker is strictly sequential, so the only pacing needed is a fixed
// blocking pause after each fetch. The pause honours context cancellation
// so an interrupted run can stop promptly after its last checkpoint save.
//
// Interface:
//
// All pacers implement the Pacer interface:
//   - Pause(ctx) error - Block for the configured delay
//   - Delay() time.Duration - The configured delay
//
// Usage:
//
//	pacer := ratelimit.NewFixedDelay(5 * time.Second)
//
//	if err := pacer.Pause(ctx); err != nil {
//	    // context cancelled while waiting
//	}
package ratelimit
