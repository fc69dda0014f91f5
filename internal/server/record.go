package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	resolverdomain "github.com/smallbiznis/territorial/internal/resolver/domain"
	"github.com/smallbiznis/territorial/internal/trigger"
)

// RecordCreated accepts a record.created event and assigns the record to its
// winning territory. Replays return the existing assignment with
// created=false.
func (s *Server) RecordCreated(c *gin.Context) {
	var evt trigger.RecordCreatedEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		AbortWithError(c, trigger.ErrInvalidPayload)
		return
	}
	if strings.TrimSpace(evt.ActorID) == "" {
		evt.ActorID = actorFromRequest(c)
	}

	resp, err := s.trigger.HandleRecordCreated(c.Request.Context(), evt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ResolveRecord evaluates a record without writing an assignment.
func (s *Server) ResolveRecord(c *gin.Context) {
	var evt trigger.RecordCreatedEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		AbortWithError(c, trigger.ErrInvalidPayload)
		return
	}

	rec, err := evt.Record()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.resolverSvc.Resolve(c.Request.Context(), rec)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.Matches == nil {
		resp.Matches = []resolverdomain.Match{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
