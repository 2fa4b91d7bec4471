package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/pool"
)

// handleAdminListAccounts returns the pool status snapshot (spec §4.1).
func (s *Server) handleAdminListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, s.pool.Snapshot())
}

// handleAdminAddAccount adds or replaces an account by email (spec
// §4.1 add_or_replace), the only mutator of pool state outside the
// dispatcher's own health-flag updates (spec §6).
func (s *Server) handleAdminAddAccount(c *gin.Context) {
	var account pool.Account
	if err := c.ShouldBindJSON(&account); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.pool.AddOrReplace(&account); err != nil {
		writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": account.Email})
}

func (s *Server) handleAdminDeleteAccount(c *gin.Context) {
	s.pool.Delete(c.Param("email"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAdminRevalidate(c *gin.Context) {
	if err := s.pool.Revalidate(c.Request.Context(), c.Param("email")); err != nil {
		writeGatewayError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAdminResetLimits(c *gin.Context) {
	s.pool.ResetAllRateLimits()
	c.Status(http.StatusNoContent)
}
