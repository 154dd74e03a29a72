package fakeapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delegation_sync/internal/models"
)

const recentLimit = 5

// stats reports the dashboard aggregates.
func (s *Server) stats(c *gin.Context) {
	ds, err := s.load(s.db)
	if err != nil {
		s.fail(c, "", err)
		return
	}

	delegations := ds.ofKind(models.KindDelegation)
	members := ds.ofKind(models.KindMember)

	var military, civilian int
	byStatus := map[models.DelegationStatus]int{}
	rendered := make([]Fields, 0, len(delegations))
	for _, d := range delegations {
		out := ds.render(d)
		rendered = append(rendered, out)
		switch models.DelegationType(str(out["type"])) {
		case models.TypeMilitary:
			military++
		case models.TypeCivilian:
			civilian++
		}
		byStatus[out["status"].(models.DelegationStatus)]++
	}

	departed := 0
	recentMembers := make([]Fields, 0, recentLimit)
	for _, m := range members {
		if str(m.Fields["status"]) == string(models.MemberDeparted) {
			departed++
		}
	}
	for i := len(members) - 1; i >= 0 && len(recentMembers) < recentLimit; i-- {
		recentMembers = append(recentMembers, ds.render(members[i]))
	}
	recentDelegations := make([]Fields, 0, recentLimit)
	for i := len(rendered) - 1; i >= 0 && len(recentDelegations) < recentLimit; i-- {
		recentDelegations = append(recentDelegations, rendered[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"event_stats": gin.H{
			"total_main_events":        len(ds.ofKind(models.KindMainEvent)),
			"total_sub_events":         len(ds.ofKind(models.KindSubEvent)),
			"total_delegations":        len(delegations),
			"total_members":            len(members),
			"total_departure_sessions": len(ds.ofKind(models.KindDepartureSession)),
		},
		"delegation_stats": gin.H{
			"total_delegations":    len(delegations),
			"military_delegations": military,
			"civilian_delegations": civilian,
			"not_departed":         byStatus[models.StatusNotDeparted],
			"partially_departed":   byStatus[models.StatusPartiallyDeparted],
			"fully_departed":       byStatus[models.StatusFullyDeparted],
		},
		"member_stats": gin.H{
			"total_members":        len(members),
			"not_departed_members": len(members) - departed,
			"departed_members":     departed,
		},
		"recent_delegations": recentDelegations,
		"recent_members":     recentMembers,
	})
}
