package ports

import (
	"github.com/gin-gonic/gin"
)

type SessionHTTPHandler interface {
	GetStatus(c *gin.Context)
	ToggleRecording(c *gin.Context)
	SetResolution(c *gin.Context)
	ToggleAudio(c *gin.Context)
	SetFilter(c *gin.Context)
	CaptureStill(c *gin.Context)
	LatestArtifact(c *gin.Context)
}
