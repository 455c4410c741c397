package services

import (
	"sort"

	"promptvault-backend/internal/domain"
)

// CompositionResolver reports dependency and conflict relationships within a
// selection. It is advisory only: the selection itself is never grown or
// shrunk here, so the selector's budget accounting stays authoritative.
type CompositionResolver struct{}

// NewCompositionResolver creates a new resolver.
func NewCompositionResolver() *CompositionResolver {
	return &CompositionResolver{}
}

// ResolveDependencies walks depends_on and extends edges one hop outward
// from each selected fragment and returns them for caller awareness.
// Dependencies whose target is not in the live set are omitted: a dangling
// edge to a deleted fragment must not fail the whole request.
func (cr *CompositionResolver) ResolveDependencies(
	selected []string,
	edges map[string][]domain.Relationship,
	live map[string]bool,
) []domain.DependencyReport {
	inSelection := make(map[string]bool, len(selected))
	for _, id := range selected {
		inSelection[id] = true
	}

	reports := make([]domain.DependencyReport, 0)
	for _, id := range selected {
		for _, edge := range edges[id] {
			if !edge.RequiresTarget() {
				continue
			}
			if inSelection[edge.TargetID] {
				continue // already satisfied within the selection
			}
			if !live[edge.TargetID] {
				continue
			}
			reports = append(reports, domain.DependencyReport{
				SourceID: edge.SourceID,
				TargetID: edge.TargetID,
				Type:     edge.Type,
			})
		}
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].SourceID != reports[j].SourceID {
			return reports[i].SourceID < reports[j].SourceID
		}
		return reports[i].TargetID < reports[j].TargetID
	})

	return reports
}

// FindConflicts scans all pairs within the selection for conflicts edges and
// returns them for the caller to resolve. Both members stay selected; the
// engine flags but never auto-resolves.
func (cr *CompositionResolver) FindConflicts(
	selected []string,
	edges map[string][]domain.Relationship,
) []domain.ConflictReport {
	inSelection := make(map[string]bool, len(selected))
	for _, id := range selected {
		inSelection[id] = true
	}

	seen := make(map[[2]string]bool)
	conflicts := make([]domain.ConflictReport, 0)

	for _, id := range selected {
		for _, edge := range edges[id] {
			if edge.Type != domain.RelationshipConflicts {
				continue
			}
			if !inSelection[edge.TargetID] {
				continue
			}

			// conflicts is symmetric; report each pair once
			key := canonicalPair(edge.SourceID, edge.TargetID)
			if seen[key] {
				continue
			}
			seen[key] = true

			reason := edge.Metadata["reason"]
			if reason == "" {
				reason = "fragments are marked as conflicting"
			}
			conflicts = append(conflicts, domain.ConflictReport{
				SourceID: edge.SourceID,
				TargetID: edge.TargetID,
				Reason:   reason,
			})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].SourceID != conflicts[j].SourceID {
			return conflicts[i].SourceID < conflicts[j].SourceID
		}
		return conflicts[i].TargetID < conflicts[j].TargetID
	})

	return conflicts
}

func canonicalPair(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
