package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"tokenlens/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	minDays      = 1
	maxDays      = 365
	defaultDays  = 30
	minLimit     = 1
	maxLimit     = 100
	defaultLimit = 20
)

// queryInt reads an integer query parameter bounded to [lo, hi]. A missing
// parameter yields def; anything else out of range is an error.
func queryInt(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

func queryDays(c *gin.Context) (int, error) {
	return queryInt(c, "days", defaultDays, minDays, maxDays)
}

func queryLimit(c *gin.Context, def int) (int, error) {
	return queryInt(c, "limit", def, minLimit, maxLimit)
}

func queryInterval(c *gin.Context) (string, error) {
	interval := c.DefaultQuery("interval", domain.IntervalDaily)
	if interval != domain.IntervalDaily && interval != domain.IntervalHourly {
		return "", fmt.Errorf("interval must be %s or %s", domain.IntervalHourly, domain.IntervalDaily)
	}
	return interval, nil
}

// tokenRef validates the :network/:address path parameters.
func tokenRef(c *gin.Context) (domain.TokenRef, error) {
	return domain.NewTokenRef(c.Param("address"), c.Param("network"))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func serverError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
