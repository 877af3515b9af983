package recommendations

import (
	"context"
	"sort"

	"github.com/hypeshelf/backend/internal/users"
	"go.uber.org/zap"
)

// Owner is the display identity attached to a listed recommendation.
type Owner struct {
	Name  string
	Email string
}

var (
	teamOwner    = Owner{Name: "HypeShelf Team", Email: "team@hypeshelf.com"}
	deletedOwner = Owner{Name: "Deleted User", Email: ""}
)

// Enriched pairs a recommendation with its resolved owner identity.
type Enriched struct {
	Recommendation
	Owner Owner
}

// Directory resolves user records for enrichment. *users.Service satisfies it.
type Directory interface {
	BySubject(ctx context.Context, subject string) (*users.User, error)
}

// enrich resolves owner display data for each record. Missing or archived
// owners degrade to a placeholder; a lookup failure degrades the same way
// rather than failing the read.
func (s *Service) enrich(ctx context.Context, records []Recommendation) []Enriched {
	owners := make(map[string]Owner, len(records))
	enriched := make([]Enriched, 0, len(records))
	for _, record := range records {
		owner, seen := owners[record.OwnerSubject]
		if !seen {
			owner = s.resolveOwner(ctx, record.OwnerSubject)
			owners[record.OwnerSubject] = owner
		}
		enriched = append(enriched, Enriched{Recommendation: record, Owner: owner})
	}
	return enriched
}

func (s *Service) resolveOwner(ctx context.Context, subject string) Owner {
	if subject == SystemSubject {
		return teamOwner
	}
	user, err := s.directory.BySubject(ctx, subject)
	if err != nil {
		s.logger.Warn("owner lookup failed, using placeholder",
			zap.String("subject", subject),
			zap.Error(err))
		return deletedOwner
	}
	if user == nil || user.IsArchived {
		return deletedOwner
	}
	name := user.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	return Owner{Name: name, Email: user.Email}
}

// sortListing orders a listing: staff pick first, then newest first. The
// stable sort keeps equal-timestamp records in store order.
func sortListing(items []Enriched) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsStaffPick != items[j].IsStaffPick {
			return items[i].IsStaffPick
		}
		return items[i].CreatedAtSeconds > items[j].CreatedAtSeconds
	})
}
