package search

import (
	"github.com/poiesic/newsrank/query"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterAnalysis(analysis query.Analysis)
	AfterSemantic(scores map[int]float64)
	AfterKeyword(scores map[int]float64)
	AfterFusion(scores map[int]float64)
	AfterThreshold(kept int)
	Finish(results []Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                  {}
func (n *noopMonitor) AfterAnalysis(_ query.Analysis)  {}
func (n *noopMonitor) AfterSemantic(_ map[int]float64) {}
func (n *noopMonitor) AfterKeyword(_ map[int]float64)  {}
func (n *noopMonitor) AfterFusion(_ map[int]float64)   {}
func (n *noopMonitor) AfterThreshold(_ int)            {}
func (n *noopMonitor) Finish(_ []Result)               {}
