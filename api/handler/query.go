package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagequery/cache"
	"github.com/use-agent/pagequery/config"
	"github.com/use-agent/pagequery/models"
	"github.com/use-agent/pagequery/query"
)

// DriverSource hands out exclusive driver handles; one handle serves
// exactly one pipeline run and is returned through the release func.
type DriverSource interface {
	Acquire(ctx context.Context) (query.Driver, func(), error)
}

// Sources bundles the two driver backends the handler chooses between.
type Sources struct {
	// Browser runs pipelines in a headless Chrome tab (render=true).
	Browser DriverSource

	// Static runs pipelines against the fetched document (render=false).
	Static DriverSource
}

// Query returns a handler for POST /api/v1/query.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (when max_age is set).
//  3. Compile the wire pipeline into a query.Query.
//  4. Acquire a driver (browser tab or static page), run the pipeline.
//  5. Fill Timing, cache, return 200 — or map the failure to a status.
func Query(srcs Sources, cc *cache.Cache, runnerCfg config.RunnerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.QueryResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		cacheKey := cache.Key(&req)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		q, err := req.Compile()
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		timeout := time.Duration(req.Timeout) * time.Second
		if timeout > runnerCfg.MaxTimeout {
			timeout = runnerCfg.MaxTimeout
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		src := srcs.Static
		driverName := "static"
		if req.Render {
			src = srcs.Browser
			driverName = "browser"
		}

		runStart := time.Now()
		drv, release, err := src.Acquire(ctx)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}
		records, err := q.Run(ctx, drv)
		release()
		runMs := time.Since(runStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
				RunMs:   runMs,
			})
			return
		}

		resp := &models.QueryResponse{
			Success: true,
			Records: records,
			Count:   len(records),
			Driver:  driverName,
			Timing: models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
				RunMs:   runMs,
			},
		}
		if cc != nil && req.MaxAge > 0 {
			resp.CacheStatus = "miss"
			cc.Set(cacheKey, resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a run failure to the correct HTTP status code and
// writes the error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	detail, status := models.DetailFor(err)
	c.JSON(status, models.QueryResponse{
		Success: false,
		Timing:  timing,
		Error:   detail,
	})
}
