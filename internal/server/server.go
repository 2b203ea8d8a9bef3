package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/handler"
)

// Server wraps the gin router.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(h *handler.Handler, logger *zap.Logger) *Server {
	router := gin.Default()
	h.RegisterRoutes(router)

	return &Server{
		router: router,
		logger: logger,
	}
}

// Run starts the HTTP server on the given port and blocks.
func (s *Server) Run(port string) error {
	s.logger.Info("Server starting", zap.String("port", port))
	if err := s.router.Run(":" + port); err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}
