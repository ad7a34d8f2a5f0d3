package engine

import "fmt"

const (
	DefaultBranchingThreshold = 30
	DefaultShallowDepth       = 3
	DefaultDeepDepth          = 4
)

// Policy controls how deep the selector searches for a given root branching factor.
type Policy struct {
	BranchingThreshold int  `yaml:"branching_threshold"`
	ShallowDepth       int  `yaml:"shallow_depth"`
	DeepDepth          int  `yaml:"deep_depth"`
	BlockedImpassable  bool `yaml:"blocked_impassable"`
	// NodeCap stops the root loop once this many nodes were visited (0 = unlimited).
	NodeCap int64 `yaml:"node_cap"`
}

func DefaultPolicy() Policy {
	return Policy{
		BranchingThreshold: DefaultBranchingThreshold,
		ShallowDepth:       DefaultShallowDepth,
		DeepDepth:          DefaultDeepDepth,
	}
}

func ValidatePolicy(p Policy) error {
	if p.BranchingThreshold < 0 {
		return fmt.Errorf("branching threshold must be >= 0, got %d", p.BranchingThreshold)
	}
	if p.ShallowDepth < 1 || p.DeepDepth < 1 {
		return fmt.Errorf("search depths must be >= 1 (shallow=%d deep=%d)", p.ShallowDepth, p.DeepDepth)
	}
	if p.NodeCap < 0 {
		return fmt.Errorf("node cap must be >= 0, got %d", p.NodeCap)
	}
	return nil
}

// DepthFor returns the search depth for a root with rootMoves candidates.
func (p Policy) DepthFor(rootMoves int) int {
	if rootMoves > p.BranchingThreshold {
		return p.ShallowDepth
	}
	return p.DeepDepth
}
