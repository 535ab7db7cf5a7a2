// Package ladder plans the rendition ladder for a single input.
//
// The ladder itself is configuration data; this package only orders it into
// encode tasks and names the outputs. Lower tiers come first so the cheapest
// rendition finishes, and becomes playable, soonest.
package ladder
